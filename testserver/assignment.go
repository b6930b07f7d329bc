package testserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/assignment"
)

var (
	errAssignmentNotFound  = echo.NewHTTPError(http.StatusNotFound, "Assignment not found")
	errNotAssignmentViewer = echo.NewHTTPError(
		http.StatusForbidden, "You are not authorized to view this assignment")
)

// Handlers

func (s *Server) createAssignment(ctx echo.Context) error {
	usr, err := s.contextUser(ctx)
	if err != nil {
		return err
	}
	if !usr.IsTeacher() {
		return echo.NewHTTPError(http.StatusForbidden, "Only teachers can create assignments")
	}

	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(s.validate, s.translator); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.allStudentsLocked(data.StudentIDs) {
		return echo.NewHTTPError(http.StatusBadRequest, "Some student IDs are invalid or not students")
	}

	now := time.Now().UTC()
	asg := &assignment.Assignment{
		ID:          uuid.New().String(),
		Title:       data.Title,
		Description: data.Description,
		DueDate:     data.DueDate,
		TeacherID:   usr.ID,
		StudentIDs:  data.StudentIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.assignments[asg.ID] = asg
	return ctx.JSON(http.StatusCreated, asg)
}

func (s *Server) queryAssignments(ctx echo.Context) error {
	usr, err := s.contextUser(ctx)
	if err != nil {
		return err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	asgs := make([]assignment.Assignment, 0, len(s.assignments))
	for _, asg := range s.assignments {
		if usr.IsTeacher() {
			if asg.TeacherID == usr.ID {
				asgs = append(asgs, *asg)
			}
		} else if containsString(asg.StudentIDs, usr.ID) {
			asgs = append(asgs, *asg)
		}
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (s *Server) retrieveAssignment(ctx echo.Context) error {
	usr, err := s.contextUser(ctx)
	if err != nil {
		return err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	asg, ok := s.assignments[ctx.Param("id")]
	if !ok {
		return errAssignmentNotFound
	}
	if usr.IsTeacher() && asg.TeacherID != usr.ID {
		return errNotAssignmentViewer
	}
	if usr.IsStudent() && !containsString(asg.StudentIDs, usr.ID) {
		return errNotAssignmentViewer
	}

	detail := assignment.AssignmentDetail{Assignment: *asg}
	if teacher, ok := s.accounts[asg.TeacherID]; ok {
		detail.Teacher = &teacher.User
	}
	detail.Submissions = s.submissionsLocked(asg.ID, "")
	return ctx.JSON(http.StatusOK, detail)
}

func (s *Server) updateAssignment(ctx echo.Context) error {
	usr, err := s.contextUser(ctx)
	if err != nil {
		return err
	}

	var data assignment.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err := data.Validate(s.validate, s.translator); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	asg, ok := s.assignments[ctx.Param("id")]
	if !ok {
		return errAssignmentNotFound
	}
	if !usr.IsTeacher() || asg.TeacherID != usr.ID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to update this assignment")
	}
	if data.StudentIDs != nil && !s.allStudentsLocked(data.StudentIDs) {
		return echo.NewHTTPError(http.StatusBadRequest, "Some student IDs are invalid or not students")
	}

	if data.Title != "" {
		asg.Title = data.Title
	}
	if data.Description != "" {
		asg.Description = data.Description
	}
	if data.DueDate != nil {
		asg.DueDate = *data.DueDate
	}
	if data.StudentIDs != nil {
		asg.StudentIDs = data.StudentIDs
	}
	asg.UpdatedAt = time.Now().UTC()
	return ctx.JSON(http.StatusOK, asg)
}

func (s *Server) querySubmissions(ctx echo.Context) error {
	usr, err := s.contextUser(ctx)
	if err != nil {
		return err
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	asg, ok := s.assignments[ctx.Param("id")]
	if !ok {
		return errAssignmentNotFound
	}

	if usr.IsTeacher() {
		if asg.TeacherID != usr.ID {
			return errNotAssignmentViewer
		}
		return ctx.JSON(http.StatusOK, s.submissionsLocked(asg.ID, ""))
	}
	if !containsString(asg.StudentIDs, usr.ID) {
		return errNotAssignmentViewer
	}
	return ctx.JSON(http.StatusOK, s.submissionsLocked(asg.ID, usr.ID))
}

func (s *Server) submit(ctx echo.Context) error {
	usr, err := s.contextUser(ctx)
	if err != nil {
		return err
	}
	if !usr.IsStudent() {
		return echo.NewHTTPError(http.StatusForbidden, "Only students can submit assignments")
	}

	assignmentID := ctx.FormValue("assignment_id")
	comment := ctx.FormValue("comment")

	s.mutex.Lock()
	defer s.mutex.Unlock()
	asg, ok := s.assignments[assignmentID]
	if !ok {
		return errAssignmentNotFound
	}
	if !containsString(asg.StudentIDs, usr.ID) {
		return echo.NewHTTPError(http.StatusForbidden, "You are not assigned to this assignment")
	}

	now := time.Now().UTC()
	sub := &assignment.Submission{
		ID:           uuid.New().String(),
		Comment:      comment,
		AssignmentID: asg.ID,
		StudentID:    usr.ID,
		Student:      &usr,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if form, err := ctx.MultipartForm(); err == nil {
		for _, fh := range form.File["files"] {
			if fh.Filename == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "File name is required")
			}
			sub.Files = append(sub.Files, assignment.File{
				ID:          uuid.New().String(),
				Filename:    fh.Filename,
				Filepath:    fmt.Sprintf("uploads/submission_%s_%s", sub.ID, fh.Filename),
				Size:        fh.Size,
				ContentType: fh.Header.Get("Content-Type"),
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
	}

	s.submissions[sub.ID] = sub
	return ctx.JSON(http.StatusCreated, sub)
}

func (s *Server) analyze(ctx echo.Context) error {
	usr, err := s.contextUser(ctx)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	sub, ok := s.submissions[ctx.QueryParam("submission_id")]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Submission not found")
	}
	asg := s.assignments[sub.AssignmentID]
	if !usr.IsTeacher() || asg == nil || asg.TeacherID != usr.ID {
		return echo.NewHTTPError(http.StatusForbidden, "Only teachers can create analytics")
	}

	sub.Analytic = &assignment.Analytic{
		ID:   uuid.New().String(),
		Data: map[string]interface{}{},
	}
	sub.UpdatedAt = time.Now().UTC()
	return ctx.JSON(http.StatusCreated, sub)
}

// helpers

func (s *Server) allStudentsLocked(ids []string) bool {
	for _, id := range ids {
		acct, ok := s.accounts[id]
		if !ok || !acct.IsStudent() {
			return false
		}
	}
	return true
}

func (s *Server) submissionsLocked(assignmentID, studentID string) []assignment.Submission {
	subs := make([]assignment.Submission, 0)
	for _, sub := range s.submissions {
		if sub.AssignmentID != assignmentID {
			continue
		}
		if studentID != "" && sub.StudentID != studentID {
			continue
		}
		subs = append(subs, *sub)
	}
	return subs
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
