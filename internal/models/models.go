package models

// All lists the models managed by auto-migration.
func All() []interface{} {
	return []interface{}{
		&Platform{},
		&User{},
		&ClassroomTask{},
		&TaskLink{},
		&Feedback{},
		&GradeSyncRun{},
	}
}
