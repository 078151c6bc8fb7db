package credits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	model "github.com/glkeru/credits/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Подтверждение приема в клинике (Kafka appointments)
type AppointmentConfirmation struct {
	AppointmentID string `json:"appointmentId"`
	ClinicID      string `json:"clinicId"`
	Token         string `json:"token"`
	Credits       int64  `json:"credits"`
}

// Сканирование QR на стойке клиники (RabbitMQ redeems)
type ScanRequest struct {
	ScanID   string `json:"scanId"`
	ClinicID string `json:"clinicId"`
	Token    string `json:"token"`
	Credits  int64  `json:"credits"`
}

// Ответ сканеру (RabbitMQ confirms)
type ScanConfirmation struct {
	ScanID    string       `json:"scanId"`
	ClinicID  string       `json:"clinicId"`
	Outcome   string       `json:"outcome"`
	Reason    model.Reason `json:"reason,omitempty"`
	Balance   int64        `json:"balance,omitempty"`
	Shortfall int64        `json:"shortfall,omitempty"`
	TnxID     string       `json:"tnxId,omitempty"`
	Code      string       `json:"code,omitempty"`
	Credits   int64        `json:"credits,omitempty"`
}

// Запрос на сторно (Kafka refunds)
type RefundStruct struct {
	TnxID string `json:"tnxId"`
}

func ParseAppointment(body []byte) (c AppointmentConfirmation, err error) {
	err = json.Unmarshal(body, &c)
	if err != nil {
		return c, err
	}
	if c.AppointmentID == "" {
		return c, fmt.Errorf("invalid appointment: appointmentId field is required")
	}
	if c.ClinicID == "" {
		return c, fmt.Errorf("invalid appointment: clinicId field is required")
	}
	return c, nil
}

func ParseScan(body []byte) (r ScanRequest, err error) {
	err = json.Unmarshal(body, &r)
	if err != nil {
		return r, err
	}
	if r.ScanID == "" {
		return r, fmt.Errorf("invalid scan: scanId field is required")
	}
	return r, nil
}

func ParseRefund(body []byte) (uuid.UUID, error) {
	refund := RefundStruct{}
	err := json.Unmarshal(body, &refund)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(refund.TnxID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid refund: tnxId: %w", err)
	}
	return id, nil
}

// Прием подтвержден: списать кредиты за прием
func (s *RedemptionService) ConfirmAppointment(ctx context.Context, c AppointmentConfirmation) (model.Transaction, error) {
	s.logger.Info("appointment",
		zap.String("appointment", c.AppointmentID),
		zap.String("clinic", c.ClinicID))

	tnx, err := s.Redeem(ctx, model.RedeemRequest{Token: c.Token, CounterpartyID: c.ClinicID, Credits: c.Credits})
	if err != nil {
		return model.Transaction{}, fmt.Errorf("appointment %s: %w", c.AppointmentID, err)
	}
	return tnx, nil
}

// Сканирование: ответ сканеру есть всегда, и при успехе, и при отказе
func (s *RedemptionService) ScanToRedeem(ctx context.Context, r ScanRequest) ScanConfirmation {
	confirm := ScanConfirmation{ScanID: r.ScanID, ClinicID: r.ClinicID}

	tnx, err := s.Redeem(ctx, model.RedeemRequest{Token: r.Token, CounterpartyID: r.ClinicID, Credits: r.Credits})
	if err != nil {
		confirm.Outcome = model.OutcomeRejected
		var rej *model.RejectionError
		if errors.As(err, &rej) {
			confirm.Reason = rej.Reason
			confirm.Balance = rej.Balance
			confirm.Shortfall = rej.Shortfall
		} else {
			confirm.Reason = model.ReasonOf(err)
		}
		return confirm
	}

	confirm.Outcome = model.OutcomeCommitted
	confirm.TnxID = tnx.ID.String()
	confirm.Code = tnx.Code
	confirm.Credits = tnx.CreditsDebited
	return confirm
}
