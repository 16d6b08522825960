package postgresql

// migrations returns the schema by version. Steps, goals and metadata are
// stored as JSONB because the engine always loads a workflow whole.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id VARCHAR(255) PRIMARY KEY,
				account_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				version INTEGER NOT NULL DEFAULT 1,
				status VARCHAR(50) NOT NULL,
				trigger_config JSONB NOT NULL DEFAULT '{}',
				steps JSONB NOT NULL DEFAULT '[]',
				goals JSONB NOT NULL DEFAULT '[]',
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_account_status
				ON workflows(account_id, status) WHERE deleted_at IS NULL;
			CREATE INDEX IF NOT EXISTS idx_workflows_trigger_event
				ON workflows((trigger_config->>'event_type')) WHERE deleted_at IS NULL;
		`,
		2: `
			CREATE TABLE IF NOT EXISTS executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				workflow_version INTEGER NOT NULL DEFAULT 1,
				contact_id VARCHAR(255) NOT NULL,
				account_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				current_step_index INTEGER NOT NULL DEFAULT 0,
				retry_count INTEGER NOT NULL DEFAULT 0,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				error_message TEXT NOT NULL DEFAULT '',
				metadata JSONB
			);

			CREATE INDEX IF NOT EXISTS idx_executions_workflow_status
				ON executions(workflow_id, status);
			CREATE INDEX IF NOT EXISTS idx_executions_contact
				ON executions(contact_id);
			CREATE INDEX IF NOT EXISTS idx_executions_account_status
				ON executions(account_id, status);
		`,
		3: `
			CREATE TABLE IF NOT EXISTS execution_logs (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL,
				step_index INTEGER NOT NULL,
				step_id VARCHAR(255) NOT NULL DEFAULT '',
				action_type VARCHAR(255) NOT NULL DEFAULT '',
				attempt INTEGER NOT NULL DEFAULT 1,
				status VARCHAR(50) NOT NULL,
				response JSONB,
				duration_ms BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_execution_logs_execution
				ON execution_logs(execution_id, created_at);
		`,
		4: `
			CREATE TABLE IF NOT EXISTS goal_achievements (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL,
				contact_id VARCHAR(255) NOT NULL,
				goal_config_id VARCHAR(255) NOT NULL,
				achieved_at TIMESTAMP WITH TIME ZONE NOT NULL,
				trigger_event JSONB,
				UNIQUE (contact_id, goal_config_id)
			);

			CREATE INDEX IF NOT EXISTS idx_goal_achievements_execution
				ON goal_achievements(execution_id);
		`,
	}
}
