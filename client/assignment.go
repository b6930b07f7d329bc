package client

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
)

// CreateAssignment creates an assignment; the service only allows teachers.
func (c *Client) CreateAssignment(ctx context.Context, token string, data assignment.NewAssignment) (assignment.Assignment, error) {
	if err := data.Validate(c.validate, c.translator); err != nil {
		return assignment.Assignment{}, err
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost, "/api/assignments", token, data)
	if err != nil {
		return assignment.Assignment{}, err
	}

	var asg assignment.Assignment
	if err := c.do(req, &asg); err != nil {
		return assignment.Assignment{}, err
	}
	return asg, nil
}

// ListAssignments returns the assignments visible to the current user:
// created ones for teachers, assigned ones for students.
func (c *Client) ListAssignments(ctx context.Context, token string) ([]assignment.Assignment, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/assignments", token, nil)
	if err != nil {
		return nil, err
	}

	var asgs []assignment.Assignment
	if err := c.do(req, &asgs); err != nil {
		return nil, err
	}
	return asgs, nil
}

// GetAssignment fetches a single assignment populated with its teacher and submissions.
func (c *Client) GetAssignment(ctx context.Context, token, id string) (assignment.AssignmentDetail, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/assignments/"+id, token, nil)
	if err != nil {
		return assignment.AssignmentDetail{}, err
	}

	var asg assignment.AssignmentDetail
	if err := c.do(req, &asg); err != nil {
		return assignment.AssignmentDetail{}, err
	}
	return asg, nil
}

// UpdateAssignment applies a partial update to an assignment.
func (c *Client) UpdateAssignment(ctx context.Context, token, id string, data assignment.UpdateAssignment) (assignment.Assignment, error) {
	if err := data.Validate(c.validate, c.translator); err != nil {
		return assignment.Assignment{}, err
	}

	req, err := c.newJSONRequest(ctx, http.MethodPut, "/api/assignments/"+id, token, data)
	if err != nil {
		return assignment.Assignment{}, err
	}

	var asg assignment.Assignment
	if err := c.do(req, &asg); err != nil {
		return assignment.Assignment{}, err
	}
	return asg, nil
}

// ListSubmissions returns an assignment's submissions; the service scopes
// them to the caller (all of them for the owning teacher, own ones for a student).
func (c *Client) ListSubmissions(ctx context.Context, token, assignmentID string) ([]assignment.Submission, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/assignments/"+assignmentID+"/submissions", token, nil)
	if err != nil {
		return nil, err
	}

	var subs []assignment.Submission
	if err := c.do(req, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// Upload is a document to attach to a submission.
type Upload struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// NewSubmission contains information needed to submit an assignment.
type NewSubmission struct {
	AssignmentID string
	Comment      string
	Files        []Upload
}

// Submit uploads a student's submission as a multipart form:
// `assignment_id`, an optional `comment` and any number of `files` parts.
func (c *Client) Submit(ctx context.Context, token string, data NewSubmission) (assignment.Submission, error) {
	if data.AssignmentID == "" {
		return assignment.Submission{}, core.NewValidationError(nil,
			core.FieldError{Field: "assignment_id", Error: "this field is required"})
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	if err := form.WriteField("assignment_id", data.AssignmentID); err != nil {
		return assignment.Submission{}, errors.Wrap(err, "writing assignment_id field")
	}
	if data.Comment != "" {
		if err := form.WriteField("comment", data.Comment); err != nil {
			return assignment.Submission{}, errors.Wrap(err, "writing comment field")
		}
	}
	for _, file := range data.Files {
		if file.Filename == "" {
			return assignment.Submission{}, core.NewValidationError(nil,
				core.FieldError{Field: "files", Error: "file name is required"})
		}
		w, err := form.CreatePart(fileHeader(file))
		if err != nil {
			return assignment.Submission{}, errors.Wrap(err, "creating file part")
		}
		if _, err := io.Copy(w, file.Content); err != nil {
			return assignment.Submission{}, errors.Wrapf(err, "copying %s", file.Filename)
		}
	}
	if err := form.Close(); err != nil {
		return assignment.Submission{}, errors.Wrap(err, "closing multipart form")
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/assignments/submit", token, &body)
	if err != nil {
		return assignment.Submission{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var sub assignment.Submission
	if err := c.do(req, &sub); err != nil {
		return assignment.Submission{}, err
	}
	return sub, nil
}

// RequestAnalysis asks the service to run an AI analysis of a submission's
// documents; the service only allows the assignment's teacher.
func (c *Client) RequestAnalysis(ctx context.Context, token, submissionID string) (assignment.Submission, error) {
	q := make(url.Values)
	q.Set("submission_id", submissionID)

	req, err := c.newRequest(ctx, http.MethodPost, "/api/analyze?"+q.Encode(), token, nil)
	if err != nil {
		return assignment.Submission{}, err
	}

	var sub assignment.Submission
	if err := c.do(req, &sub); err != nil {
		return assignment.Submission{}, err
	}
	return sub, nil
}

func fileHeader(file Upload) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="files"; filename="`+file.Filename+`"`)
	ct := file.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	return h
}
