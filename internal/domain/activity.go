package domain

import "context"

// ActivityKind distinguishes coding challenges from multiple-choice quizzes
type ActivityKind string

const (
	ActivityKindChallenge ActivityKind = "challenge"
	ActivityKindQuiz      ActivityKind = "quiz"
)

// Valid reports whether k is a known activity kind
func (k ActivityKind) Valid() bool {
	return k == ActivityKindChallenge || k == ActivityKindQuiz
}

// QuestionKind tells whether a question is answered with code or with an option
type QuestionKind string

const (
	QuestionKindCoding QuestionKind = "coding"
	QuestionKindChoice QuestionKind = "choice"
)

// Question is one item of an activity
type Question struct {
	ID          string              `json:"id"`
	Kind        QuestionKind        `json:"kind"`
	Title       string              `json:"title"`
	Prompt      string              `json:"prompt"`
	Difficulty  string              `json:"difficulty,omitempty"`
	Marks       int                 `json:"marks"`
	Options     []string            `json:"options,omitempty"`
	Boilerplate map[Language]string `json:"boilerplate,omitempty"`
}

// BoilerplateFor returns the starter code for lang, falling back to the
// language's default snippet
func (q *Question) BoilerplateFor(lang Language, table LanguageTable) string {
	if code := q.Boilerplate[lang]; code != "" {
		return code
	}
	return table.Snippet(lang)
}

// ActivityRef identifies an activity together with its kind
type ActivityRef struct {
	ID   string       `json:"id"`
	Kind ActivityKind `json:"kind"`
}

// Activity is a challenge or quiz with its window and question set
type Activity struct {
	ID          string       `json:"id"`
	Kind        ActivityKind `json:"kind"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Window      Window       `json:"window"`
	Questions   []Question   `json:"questions"`

	AccessKey string `json:"-"`
}

// Ref returns the reference of the activity
func (a *Activity) Ref() ActivityRef {
	return ActivityRef{ID: a.ID, Kind: a.Kind}
}

// Question finds a question by id
func (a *Activity) Question(id string) (*Question, bool) {
	for i := range a.Questions {
		if a.Questions[i].ID == id {
			return &a.Questions[i], true
		}
	}
	return nil, false
}

// ActivityRepository defines access to activities held by the application backend
type ActivityRepository interface {
	Join(ctx context.Context, kind ActivityKind, accessKey string) (*ActivityRef, error)
	FindByID(ctx context.Context, ref ActivityRef) (*Activity, error)
	End(ctx context.Context, ref ActivityRef) error
}
