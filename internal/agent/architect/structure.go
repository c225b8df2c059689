package architect

import (
	"fmt"
	"sort"
)

// CourseStructure is the typed outline the model returns. Validation tags
// are enforced by the structured-output pathway before the payload reaches
// the agent.
type CourseStructure struct {
	Title       string       `json:"title" validate:"required"`
	Description string       `json:"description"`
	Modules     []ModuleSpec `json:"modules" validate:"required,min=1,dive"`
}

type ModuleSpec struct {
	Title   string       `json:"title" validate:"required"`
	Order   int          `json:"order" validate:"min=0"`
	Lessons []LessonSpec `json:"lessons" validate:"dive"`
}

type LessonSpec struct {
	Title              string         `json:"title" validate:"required"`
	Order              int            `json:"order" validate:"min=0"`
	VideoStartTimecode string         `json:"video_start_timecode,omitempty"`
	VideoEndTimecode   string         `json:"video_end_timecode,omitempty"`
	SlideRange         *SlideRange    `json:"slide_range,omitempty"`
	Concepts           []ConceptSpec  `json:"concepts" validate:"dive"`
	Exercises          []ExerciseSpec `json:"exercises" validate:"dive"`
}

type SlideRange struct {
	Start int `json:"start" validate:"min=1"`
	End   int `json:"end" validate:"min=1"`
}

type ConceptSpec struct {
	Title           string         `json:"title" validate:"required"`
	Definition      string         `json:"definition"`
	Examples        []string       `json:"examples"`
	Timecodes       []string       `json:"timecodes"`
	SlideReferences []int          `json:"slide_references"`
	WebReferences   []WebReference `json:"web_references"`
}

type WebReference struct {
	URL         string `json:"url" validate:"required"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type ExerciseSpec struct {
	Description       string `json:"description" validate:"required"`
	ReferenceSolution string `json:"reference_solution,omitempty"`
	GradingCriteria   string `json:"grading_criteria,omitempty"`
	DifficultyLevel   int    `json:"difficulty_level" validate:"min=1,max=5"`
}

// checkDenseOrders verifies that module orders, and lesson orders within
// each module, form a permutation of [0..n).
func checkDenseOrders(cs *CourseStructure) error {
	moduleOrders := make([]int, 0, len(cs.Modules))
	for _, m := range cs.Modules {
		moduleOrders = append(moduleOrders, m.Order)
	}
	if err := densePermutation(moduleOrders); err != nil {
		return fmt.Errorf("module orders: %w", err)
	}
	for _, m := range cs.Modules {
		lessonOrders := make([]int, 0, len(m.Lessons))
		for _, l := range m.Lessons {
			lessonOrders = append(lessonOrders, l.Order)
		}
		if err := densePermutation(lessonOrders); err != nil {
			return fmt.Errorf("lesson orders in module %q: %w", m.Title, err)
		}
	}
	return nil
}

func densePermutation(orders []int) error {
	sorted := make([]int, len(orders))
	copy(sorted, orders)
	sort.Ints(sorted)
	for i, v := range sorted {
		if v != i {
			return fmt.Errorf("values %v are not a permutation of [0..%d)", orders, len(orders))
		}
	}
	return nil
}
