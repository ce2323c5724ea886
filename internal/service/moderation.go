package service

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"carmarket/backend/internal/model"
)

// MaxRejectionReasonLen bounds the stored rejection reason, in characters.
const MaxRejectionReasonLen = 1000

// Approve moves a listing to approved. The first publication time survives
// later reject/approve cycles.
func Approve(car *model.Car, reviewer uuid.UUID, now time.Time) error {
	if car.IsApproved() {
		return ErrAlreadyApproved
	}
	car.Status = model.CarStatusApproved
	car.ApprovedAt = timePtr(now)
	car.RejectedAt = nil
	car.RejectionReason = nil
	car.ReviewedBy = &reviewer
	if car.PublishedAt == nil {
		car.PublishedAt = timePtr(now)
	}
	return nil
}

// Reject moves a listing to rejected. published_at is left as it was.
func Reject(car *model.Car, reviewer uuid.UUID, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	switch {
	case reason == "":
		return newValidationError("reason", "the reason field is required")
	case utf8.RuneCountInString(reason) > MaxRejectionReasonLen:
		return newValidationError("reason", "the reason may not be greater than 1000 characters")
	}
	car.Status = model.CarStatusRejected
	car.RejectedAt = timePtr(now)
	car.ApprovedAt = nil
	car.RejectionReason = &reason
	car.ReviewedBy = &reviewer
	return nil
}

func timePtr(t time.Time) *time.Time { return &t }
