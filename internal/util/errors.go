package util

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrEmailRegistered         = errors.New("email already registered")
	ErrUsernameTaken           = errors.New("username already taken")
	ErrPasswordMismatch        = errors.New("passwords do not match")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrRoleMismatch            = errors.New("account does not have the requested role")
	ErrCourseNotFound          = errors.New("course not found")
	ErrInvalidDate             = errors.New("dates must use the YYYY-MM-DD format")
	ErrInvalidDateRange        = errors.New("end date must not be before start date")
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptAlreadyCompleted = errors.New("attempt already completed")
	ErrQuizUnavailable         = errors.New("quiz generation is unavailable right now, please try again later")
	ErrQuizStartInProgress     = errors.New("a quiz for this course is already being generated")
)

// StudentNotFoundError 管理员按用户名录入课程时找不到学生
type StudentNotFoundError struct {
	Name string
}

func (e *StudentNotFoundError) Error() string {
	return fmt.Sprintf("Student %q not found.", e.Name)
}

func (e *StudentNotFoundError) Is(target error) bool {
	return target == ErrUserNotFound
}
