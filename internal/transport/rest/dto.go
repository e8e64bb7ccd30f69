package rest

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"schedula/availability/internal/domain"
)

var validate = validator.New()

type recordDTO struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	SlotStart string `json:"slotStart" validate:"required,datetime=15:04"`
	IsOpen    *bool  `json:"isOpen" validate:"required"`
}

type batchRequest struct {
	Records []recordDTO `json:"records" validate:"required,dive"`
}

type batchResponse struct {
	Applied int `json:"applied"`
}

type recordResponse struct {
	Date      string `json:"date"`
	SlotStart string `json:"slotStart"`
	IsOpen    bool   `json:"isOpen"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (d recordDTO) toDomain() (domain.AvailabilityRecord, error) {
	date, err := domain.ParseDate(d.Date)
	if err != nil {
		return domain.AvailabilityRecord{}, err
	}
	start, err := domain.ParseSlotStart(d.SlotStart)
	if err != nil {
		return domain.AvailabilityRecord{}, err
	}
	return domain.AvailabilityRecord{Date: date, SlotStart: start, IsOpen: *d.IsOpen}, nil
}

func toRecordResponse(r domain.AvailabilityRecord) recordResponse {
	return recordResponse{Date: r.Date.String(), SlotStart: r.SlotStart.String(), IsOpen: r.IsOpen}
}

// validationMessage turns validator output into one readable line.
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "datetime":
		return fmt.Sprintf("%s must match %s", fe.Namespace(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Namespace())
	}
}
