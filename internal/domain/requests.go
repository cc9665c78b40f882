package domain

// JoinSessionRequest represents a participant joining an activity with its access key
type JoinSessionRequest struct {
	Kind      ActivityKind `json:"kind" binding:"required,oneof=challenge quiz"`
	AccessKey string       `json:"access_key"`
}

// OpenSessionRequest represents opening a session for an already joined activity
type OpenSessionRequest struct {
	Kind       ActivityKind `json:"kind" binding:"required,oneof=challenge quiz"`
	ActivityID string       `json:"activity_id" binding:"required,max=64"`
}

// SelectQuestionRequest moves the participant to another question
type SelectQuestionRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=64"`
}

// CodeRequest carries source code to run or submit. Emptiness of the code is
// checked by the session so that it reports a dedicated validation error.
type CodeRequest struct {
	Language Language `json:"language" binding:"required"`
	Code     string   `json:"code"`
}

// AnswerRequest carries the selected option of a quiz question
type AnswerRequest struct {
	SelectedOption *int `json:"selected_option"`
}
