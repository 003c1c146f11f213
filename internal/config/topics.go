package config

const (
	// TopicIngestComplete carries terminal success events from ingestion runs.
	TopicIngestComplete = "ingestion.complete"

	// TopicIngestFailed carries terminal failure events from ingestion runs.
	TopicIngestFailed = "ingestion.failed"

	// ReconcilerChannel is the NSQ channel name for the status reconciler.
	// A single named channel keeps delivery at-least-once to one logical
	// subscriber even if the process restarts.
	ReconcilerChannel = "reconciler"
)
