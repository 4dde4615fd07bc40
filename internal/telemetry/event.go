package telemetry

import "time"

type EventType string

const (
	EventTaskCreated       EventType = "task_created"
	EventTaskUpdated       EventType = "task_updated"
	EventTaskDeleted       EventType = "task_deleted"
	EventTaskCompleted     EventType = "task_completed"
	EventTaskUncompleted   EventType = "task_uncompleted"
	EventNextInstance      EventType = "next_instance_generated"
	EventRecurrenceFailed  EventType = "recurrence_failed"
	EventStreakAdvanced    EventType = "streak_advanced"
	EventStreakReset       EventType = "streak_reset"
	EventStreakHealed      EventType = "streak_healed"
	EventUndoApplied       EventType = "undo_applied"
	EventRegistryUpdated   EventType = "registry_updated"
	EventIntegrityReported EventType = "integrity_reported"
)

type Event struct {
	ID        int       `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  string    `json:"metadata"`
}

type EventMetadata map[string]interface{}
