package postgres

// GetMigrations returns all database migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_users_table",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS users (
					id UUID PRIMARY KEY,
					username TEXT NOT NULL UNIQUE,
					email TEXT NOT NULL UNIQUE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_users_active ON users(is_active) WHERE is_active = TRUE;
			`,
			DownSQL: `DROP TABLE IF EXISTS users;`,
		},
		{
			Version: 2,
			Name:    "create_profiles_table",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS profiles (
					user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
					character_type TEXT NOT NULL,
					display_name TEXT NOT NULL,
					level INTEGER NOT NULL DEFAULT 1 CHECK (level BETWEEN 1 AND 100),
					current_xp BIGINT NOT NULL DEFAULT 0 CHECK (current_xp >= 0),
					total_xp BIGINT NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
					can_change_character BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_profiles_total_xp ON profiles(total_xp DESC, user_id ASC);
				CREATE INDEX IF NOT EXISTS idx_profiles_character ON profiles(character_type);
			`,
			DownSQL: `DROP TABLE IF EXISTS profiles;`,
		},
		{
			Version: 3,
			Name:    "create_progression_events_table",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS progression_events (
					id UUID PRIMARY KEY,
					user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					source TEXT NOT NULL,
					amount INTEGER NOT NULL CHECK (amount > 0),
					level_at INTEGER NOT NULL,
					metadata JSONB NOT NULL DEFAULT '{}',
					occurred_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_progression_events_user ON progression_events(user_id, occurred_at DESC);
				CREATE INDEX IF NOT EXISTS idx_progression_events_source ON progression_events(user_id, source);
				CREATE INDEX IF NOT EXISTS idx_progression_events_day ON progression_events(user_id, source, (occurred_at AT TIME ZONE 'UTC')::date);
			`,
			DownSQL: `DROP TABLE IF EXISTS progression_events;`,
		},
		{
			Version: 4,
			Name:    "create_achievements_tables",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS achievements (
					id UUID PRIMARY KEY,
					code TEXT NOT NULL UNIQUE,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					category TEXT NOT NULL,
					rarity TEXT NOT NULL,
					xp_reward INTEGER NOT NULL DEFAULT 0 CHECK (xp_reward >= 0),
					criteria JSONB NOT NULL,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS user_achievements (
					user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					achievement_id UUID NOT NULL REFERENCES achievements(id) ON DELETE CASCADE,
					progress INTEGER NOT NULL DEFAULT 0,
					completed BOOLEAN NOT NULL DEFAULT FALSE,
					unlocked_at TIMESTAMP WITH TIME ZONE,
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, achievement_id)
				);

				CREATE INDEX IF NOT EXISTS idx_user_achievements_completed ON user_achievements(user_id) WHERE completed = TRUE;
			`,
			DownSQL: `
				DROP TABLE IF EXISTS user_achievements;
				DROP TABLE IF EXISTS achievements;
			`,
		},
		{
			Version: 5,
			Name:    "create_lessons_tables",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS lessons (
					id UUID PRIMARY KEY,
					ordinal INTEGER NOT NULL UNIQUE CHECK (ordinal BETWEEN 1 AND 100),
					module INTEGER NOT NULL CHECK (module BETWEEN 1 AND 4),
					title TEXT NOT NULL,
					difficulty TEXT NOT NULL,
					xp_reward INTEGER NOT NULL DEFAULT 0 CHECK (xp_reward >= 0),
					prerequisites INTEGER[] NOT NULL DEFAULT '{}',
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS user_lesson_progress (
					user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					lesson_ordinal INTEGER NOT NULL CHECK (lesson_ordinal BETWEEN 1 AND 100),
					status TEXT NOT NULL DEFAULT 'in_progress',
					attempts INTEGER NOT NULL DEFAULT 0,
					best_score INTEGER NOT NULL DEFAULT 0 CHECK (best_score BETWEEN 0 AND 100),
					progress_percent INTEGER NOT NULL DEFAULT 0 CHECK (progress_percent BETWEEN 0 AND 100),
					time_spent_seconds INTEGER NOT NULL DEFAULT 0 CHECK (time_spent_seconds >= 0),
					started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					completed_at TIMESTAMP WITH TIME ZONE,
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					PRIMARY KEY (user_id, lesson_ordinal)
				);

				CREATE INDEX IF NOT EXISTS idx_lesson_progress_completed ON user_lesson_progress(user_id) WHERE status = 'completed';
			`,
			DownSQL: `
				DROP TABLE IF EXISTS user_lesson_progress;
				DROP TABLE IF EXISTS lessons;
			`,
		},
		{
			Version: 6,
			Name:    "create_leaderboard_tables",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS leaderboard_snapshots (
					id UUID PRIMARY KEY,
					version BIGINT NOT NULL UNIQUE,
					computed_at TIMESTAMP WITH TIME ZONE NOT NULL,
					total_users INTEGER NOT NULL,
					total_xp BIGINT NOT NULL
				);

				CREATE TABLE IF NOT EXISTS leaderboard_entries (
					snapshot_id UUID NOT NULL REFERENCES leaderboard_snapshots(id) ON DELETE CASCADE,
					user_id UUID NOT NULL,
					display_name TEXT NOT NULL,
					character_type TEXT NOT NULL,
					total_xp BIGINT NOT NULL,
					level INTEGER NOT NULL,
					achievement_count INTEGER NOT NULL DEFAULT 0 CHECK (achievement_count >= 0),
					rank_overall INTEGER NOT NULL,
					rank_by_character INTEGER NOT NULL,
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
					PRIMARY KEY (snapshot_id, user_id),
					UNIQUE (snapshot_id, rank_overall),
					UNIQUE (snapshot_id, character_type, rank_by_character)
				);

				CREATE INDEX IF NOT EXISTS idx_leaderboard_entries_rank ON leaderboard_entries(snapshot_id, rank_overall);
				CREATE INDEX IF NOT EXISTS idx_leaderboard_entries_character ON leaderboard_entries(snapshot_id, character_type, rank_by_character);
			`,
			DownSQL: `
				DROP TABLE IF EXISTS leaderboard_entries;
				DROP TABLE IF EXISTS leaderboard_snapshots;
			`,
		},
	}
}
