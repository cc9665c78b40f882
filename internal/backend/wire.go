package backend

import (
	"bytes"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// idRef decodes either a bare id or a populated document carrying _id
type idRef string

func (r *idRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := sonic.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = idRef(s)
		return nil
	}
	var doc struct {
		ID string `json:"_id"`
	}
	if err := sonic.Unmarshal(b, &doc); err != nil {
		return err
	}
	*r = idRef(doc.ID)
	return nil
}

// userRef decodes a participant given either as an id or as {_id, username}
type userRef struct {
	ID       string
	Username string
}

func (u *userRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return sonic.Unmarshal(b, &u.ID)
	}
	var doc struct {
		ID       string `json:"_id"`
		Username string `json:"username"`
		Name     string `json:"name"`
	}
	if err := sonic.Unmarshal(b, &doc); err != nil {
		return err
	}
	u.ID = doc.ID
	u.Username = doc.Username
	if u.Username == "" {
		u.Username = doc.Name
	}
	return nil
}

type questionDTO struct {
	ID              string            `json:"_id"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Difficulty      string            `json:"difficulty"`
	Marks           int               `json:"marks"`
	Options         []string          `json:"options"`
	BoilerplateCode map[string]string `json:"boilerplateCode"`
}

type activityDTO struct {
	ID          string        `json:"_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Key         string        `json:"key"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Questions   []questionDTO `json:"questions"`
}

type challengeEnvelope struct {
	Challenge *activityDTO `json:"challenge"`
}

type quizEnvelope struct {
	Quiz *activityDTO `json:"quiz"`
}

// toDomain converts a backend document into an activity. Challenge questions
// are answered with code and quiz questions with an option.
func (a *activityDTO) toDomain(kind domain.ActivityKind) (*domain.Activity, error) {
	w, err := domain.NewWindow(a.StartTime, a.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%w: activity %s: %w", domain.ErrActivityUnavailable, a.ID, err)
	}

	qkind := domain.QuestionKindCoding
	if kind == domain.ActivityKindQuiz {
		qkind = domain.QuestionKindChoice
	}

	questions := make([]domain.Question, 0, len(a.Questions))
	for _, q := range a.Questions {
		question := domain.Question{
			ID:         q.ID,
			Kind:       qkind,
			Title:      q.Title,
			Prompt:     q.Description,
			Difficulty: q.Difficulty,
			Marks:      q.Marks,
			Options:    q.Options,
		}
		if len(q.BoilerplateCode) > 0 {
			question.Boilerplate = make(map[domain.Language]string, len(q.BoilerplateCode))
			for lang, code := range q.BoilerplateCode {
				question.Boilerplate[domain.Language(lang)] = code
			}
		}
		questions = append(questions, question)
	}

	return &domain.Activity{
		ID:          a.ID,
		Kind:        kind,
		Title:       a.Title,
		Description: a.Description,
		Window:      w,
		Questions:   questions,
		AccessKey:   a.Key,
	}, nil
}

type participantDTO struct {
	User       userRef `json:"user"`
	TotalScore float64 `json:"totalScore"`
}

// leaderboardBody accepts both the challenge shape {participants:[...]} and
// the quiz shape, a bare array
type leaderboardBody []participantDTO

func (l *leaderboardBody) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if b[0] == '[' {
		var rows []participantDTO
		if err := sonic.Unmarshal(b, &rows); err != nil {
			return err
		}
		*l = rows
		return nil
	}
	var wrapped struct {
		Participants []participantDTO `json:"participants"`
	}
	if err := sonic.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	*l = wrapped.Participants
	return nil
}

type leaderboardEnvelope struct {
	Leaderboard leaderboardBody `json:"leaderboard"`
}

func (l leaderboardBody) entries() []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(l))
	for _, p := range l {
		entries = append(entries, domain.LeaderboardEntry{
			Participant: domain.Participant{ID: p.User.ID, Username: p.User.Username},
			TotalScore:  p.TotalScore,
		})
	}
	return domain.RankLeaderboard(entries)
}
