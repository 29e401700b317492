package domain

// Step identifies a stage of the update pipeline
type Step int

const (
	StepPreparation Step = iota
	StepAssets
	StepLibraries
	StepForge
	StepMods
	StepEnd
)

func (s Step) String() string {
	switch s {
	case StepPreparation:
		return "preparation"
	case StepAssets:
		return "assets"
	case StepLibraries:
		return "libraries"
	case StepForge:
		return "forge"
	case StepMods:
		return "mods"
	case StepEnd:
		return "end"
	default:
		return "unknown"
	}
}

// ProgressCallback receives pipeline notifications.
// Implementations must return quickly; they never affect control flow.
type ProgressCallback interface {
	// Init is called once when the pipeline starts
	Init()
	// Step is called when the pipeline enters a new stage
	Step(step Step)
	// Update is called after each file of the current stage completes
	Update(downloaded, total int)
}

// NullCallback ignores every notification
type NullCallback struct{}

func (NullCallback) Init() {}

func (NullCallback) Step(Step) {}

func (NullCallback) Update(int, int) {}
