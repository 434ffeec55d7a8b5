package progression

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL CALCULATOR
// Чистая функция: накопленный XP -> (уровень, XP внутри уровня).
// Кривая: переход с уровня n на n+1 стоит 100*n XP, то есть порог уровня L
// равен 50*L*(L-1) суммарного XP. Функция тотальна (определена для любого
// неотрицательного XP), монотонна и ограничена диапазоном [1, 100].
// ══════════════════════════════════════════════════════════════════════════════

// MinLevel - нижняя граница уровня. Новый профиль всегда на уровне 1.
const MinLevel = 1

// MaxLevel - верхняя граница уровня. После 100 уровень насыщается,
// но TotalXP продолжает накапливаться - опыт не теряется.
const MaxLevel = 100

// LevelStep - стоимость одного шага кривой: переход n -> n+1 стоит LevelStep*n.
const LevelStep = 100

// Level - уровень пользователя.
type Level int

// IsValid проверяет, что уровень в допустимом диапазоне.
func (l Level) IsValid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// Int возвращает числовое значение уровня.
func (l Level) Int() int {
	return int(l)
}

// IsMax возвращает true, если достигнут максимальный уровень.
func (l Level) IsMax() bool {
	return l >= MaxLevel
}

// TotalXPForLevel возвращает суммарный XP, необходимый для достижения уровня.
// Для уровня 1 порог равен нулю.
func TotalXPForLevel(level Level) int64 {
	if level <= MinLevel {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	l := int64(level)
	return LevelStep * l * (l - 1) / 2
}

// XPToNextLevel возвращает стоимость перехода с указанного уровня на следующий.
// На максимальном уровне возвращает 0.
func XPToNextLevel(level Level) int64 {
	if level >= MaxLevel {
		return 0
	}
	if level < MinLevel {
		level = MinLevel
	}
	return LevelStep * int64(level)
}

// Calculate вычисляет уровень и остаток XP внутри уровня из суммарного XP.
// Отрицательный вход трактуется как ноль - функция тотальна.
// Инвариант: Calculate монотонна по totalXP и для любого входа
// TotalXPForLevel(level) + xpWithinLevel == totalXP (после насыщения
// на 100 уровне весь избыток остаётся в xpWithinLevel).
func Calculate(totalXP int64) (level Level, xpWithinLevel int64) {
	if totalXP < 0 {
		totalXP = 0
	}

	level = MinLevel
	for level < MaxLevel {
		threshold := TotalXPForLevel(level + 1)
		if totalXP < threshold {
			break
		}
		level++
	}

	return level, totalXP - TotalXPForLevel(level)
}

// ProgressPercent возвращает процент прогресса внутри текущего уровня [0, 100].
// На максимальном уровне всегда 100.
func ProgressPercent(totalXP int64) int {
	level, within := Calculate(totalXP)
	if level.IsMax() {
		return 100
	}

	cost := XPToNextLevel(level)
	if cost <= 0 {
		return 100
	}

	pct := int(within * 100 / cost)
	if pct > 100 {
		pct = 100
	}
	return pct
}
