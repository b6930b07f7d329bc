package assignment

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/user"
)

// Assignment is created by a teacher and assigned to a set of students.
type Assignment struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
	TeacherID   string    `json:"teacher_id"`
	StudentIDs  []string  `json:"student_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AssignmentDetail is an Assignment populated with its teacher and submissions.
type AssignmentDetail struct {
	Assignment
	Teacher     *user.User   `json:"teacher,omitempty"`
	Submissions []Submission `json:"submissions,omitempty"`
}

// NewAssignment contains information needed to create an Assignment.
type NewAssignment struct {
	Title       string    `json:"title" validate:"required,max=100"`
	Description string    `json:"description" validate:"required"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	StudentIDs  []string  `json:"student_ids"`
}

func (na *NewAssignment) Validate(validate *validator.Validate, translator ut.Translator) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	return core.TranslateError(validate.Struct(na), translator)
}

// UpdateAssignment defines what information may be provided to modify an
// existing Assignment. Zero-valued fields are left untouched by the service.
type UpdateAssignment struct {
	Title       string     `json:"title,omitempty" validate:"omitempty,max=100"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	StudentIDs  []string   `json:"student_ids,omitempty"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate, translator ut.Translator) error {
	ua.Title = core.CleanString(ua.Title)
	ua.Description = core.CleanString(ua.Description)
	return core.TranslateError(validate.Struct(ua), translator)
}

// Submission is a student's answer to an Assignment; it may carry uploaded
// files and, once a teacher requests it, an AI-generated Analytic.
type Submission struct {
	ID           string     `json:"id"`
	Comment      string     `json:"comment,omitempty"`
	AssignmentID string     `json:"assignment_id"`
	StudentID    string     `json:"student_id"`
	Student      *user.User `json:"student,omitempty"`
	Files        []File     `json:"files,omitempty"`
	Analytic     *Analytic  `json:"analytic,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// File is an uploaded document attached to a Submission.
type File struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Filepath    string    `json:"filepath"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Analytic holds the AI-generated analysis of a Submission's documents.
type Analytic struct {
	ID   string                 `json:"id"`
	Data map[string]interface{} `json:"data"`
}
