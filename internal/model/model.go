package model

// All lists every table in migration order.
func All() []any {
	return []any{
		&User{},
		&Organization{},
		&Project{},
		&Datasource{},
		&Notebook{},
		&Conversation{},
		&Message{},
		&AgentSession{},
	}
}
