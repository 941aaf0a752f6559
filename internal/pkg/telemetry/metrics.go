package telemetry

// Span and instrumentation names.
const (
	TracerName = "github.com/samirrijal/raycross"

	// Session commands
	SpanAddRay          = "session.add_ray"
	SpanToggleSelection = "session.toggle_selection"
	SpanRemoveSelected  = "session.remove_selected"
	SpanComputeFit      = "session.compute_fit"
	SpanImport          = "session.import"

	// Workflows
	SpanImportWorkflow = "workflow.import"
)
