// Package saga реализует координацию саги покупки автомобиля: чистую
// функцию перехода состояний (machine.go) и тонкую оболочку
// персистентности+публикации вокруг неё (orchestrator.go), см. design note
// "explicit tagged union" — вся логика здесь не содержит I/O и полностью
// детерминирована, что делает её тривиально тестируемой без БД и шины.
package saga

import (
	"fmt"
	"time"

	"example.com/vehicle-saga/pkg/envelope"
	"example.com/vehicle-saga/services/orchestrator/internal/domain"
)

// EventKind перечисляет все входы чистой функции перехода: внешние
// запросы (Start, CancelRequested) и события от участников шины.
type EventKind string

const (
	EvtStart          EventKind = "START"
	EvtCancelRequested EventKind = "CANCEL_REQUESTED"

	EvtCreditReserved           EventKind = "CreditReserved"
	EvtCreditReservationFailed  EventKind = "CreditReservationFailed"
	EvtCreditReleased           EventKind = "CreditReleased"
	EvtVehicleReserved          EventKind = "VehicleReserved"
	EvtVehicleReservationFailed EventKind = "VehicleReservationFailed"
	EvtVehicleReleased          EventKind = "VehicleReleased"
	EvtPaymentCodeGenerated     EventKind = "PaymentCodeGenerated"
	EvtPaymentCodeGenFailed     EventKind = "PaymentCodeGenerationFailed"
	EvtPaymentProcessed         EventKind = "PaymentProcessed"
	EvtPaymentFailed            EventKind = "PaymentFailed"
	EvtPaymentRefunded          EventKind = "PaymentRefunded"
	EvtPaymentRefundFailed      EventKind = "PaymentRefundFailed"

	// EvtVehicleMarkedSold — псевдо-событие: результат синхронного вызова
	// markAsSold на границе vehicle participant'а (не сообщение шины).
	EvtVehicleMarkedSold       EventKind = "VehicleMarkedSold"
	EvtVehicleMarkSoldFailed   EventKind = "VehicleMarkSoldFailed"

	// EvtStepTimeout — псевдо-событие Timeout Worker'а: сага не продвинулась
	// дольше сконфигурированного порога.
	EvtStepTimeout EventKind = "StepTimeout"
)

// Event — тегированное объединение всех входов state machine. Заполняются
// только поля, относящиеся к Kind; остальные остаются нулевыми.
type Event struct {
	Kind EventKind

	// EvtStart
	CustomerID  string
	VehicleID   string
	Amount      float64
	PaymentType envelope.PaymentType

	// EvtCancelRequested
	CancelReason string

	Reason           string
	RemainingBalance *float64
	RemainingCredit  *float64
	VehiclePrice     float64
	PaymentCode      string
	PaymentID        string
	PaymentMethod    string
	ExpiresAt        time.Time
}

// Command — исходящее сообщение, которое оболочка публикует на шину после
// успешного сохранения нового состояния: либо команда участнику
// (commands.<Domain>.<Verb>), либо авторитетное событие саги
// (events.<Domain>.<Verb>) — IsEvent различает топик, который построит
// оболочка.
type Command struct {
	Domain  string
	Verb    string
	Body    any
	IsEvent bool
}

// cmd строит исходящую команду участнику (commands.<domain>.<verb>).
func cmd(domain, verb string, body any) Command {
	return Command{Domain: domain, Verb: verb, Body: body}
}

// sagaEvt строит исходящее событие саги (events.<domain>.<pastTense>). Имя
// отличается от cmd() не только по смыслу, но и чтобы не затеняться
// повсеместным параметром `evt Event` в сигнатурах transition*-функций.
func sagaEvt(domain, pastTense string, body any) Command {
	return Command{Domain: domain, Verb: pastTense, Body: body, IsEvent: true}
}

// Transition — чистая функция перехода состояний саги покупки. Не содержит
// обращений к БД, шине или часам (время берётся из события или передаётся
// явно через now), что позволяет тестировать её табличными тестами без
// какой-либо инфраструктуры.
func Transition(s domain.Saga, evt Event, now time.Time) (domain.Saga, []Command, error) {
	switch evt.Kind {
	case EvtStart:
		return transitionStart(s, evt, now)
	case EvtCancelRequested:
		return transitionCancelRequested(s, evt, now)
	case EvtCreditReserved:
		return transitionCreditReserved(s, evt, now)
	case EvtCreditReservationFailed:
		return transitionCreditReservationFailed(s, evt, now)
	case EvtVehicleReserved:
		return transitionVehicleReserved(s, evt, now)
	case EvtVehicleReservationFailed:
		return transitionVehicleReservationFailed(s, evt, now)
	case EvtPaymentCodeGenerated:
		return transitionPaymentCodeGenerated(s, evt, now)
	case EvtPaymentCodeGenFailed:
		return transitionPaymentFailureDuringForward(s, evt, now)
	case EvtPaymentProcessed:
		return transitionPaymentProcessed(s, evt, now)
	case EvtPaymentFailed:
		return transitionPaymentFailureDuringForward(s, evt, now)
	case EvtVehicleMarkedSold:
		return transitionVehicleMarkedSold(s, now)
	case EvtVehicleMarkSoldFailed:
		return transitionVehicleMarkSoldFailed(s, evt, now)
	case EvtVehicleReleased:
		return transitionVehicleReleased(s, evt, now)
	case EvtCreditReleased:
		return transitionCreditReleased(s, evt, now)
	case EvtPaymentRefunded:
		return transitionPaymentRefunded(s, evt, now)
	case EvtPaymentRefundFailed:
		return transitionPaymentRefundFailed(s, evt, now)
	case EvtStepTimeout:
		return transitionStepTimeout(s, evt, now)
	default:
		return s, nil, fmt.Errorf("неизвестное событие саги: %s", evt.Kind)
	}
}

// transitionStart — STARTED → IN_PROGRESS(CREDIT_RESERVATION), emit ReserveCredit.
func transitionStart(s domain.Saga, evt Event, now time.Time) (domain.Saga, []Command, error) {
	s.CustomerID = evt.CustomerID
	s.VehicleID = evt.VehicleID
	s.Amount = evt.Amount
	s.PaymentType = evt.PaymentType
	s.Status = domain.StatusInProgress
	s.CurrentStep = domain.StepCreditReservation
	s.UpdatedAt = now

	out := []Command{cmd(envelope.DomainCredit, envelope.VerbReserve, envelope.ReserveCreditCmd{
		TransactionID: s.TransactionID,
		CustomerID:    s.CustomerID,
		Amount:        s.Amount,
		PaymentType:   s.PaymentType,
	})}
	return s, out, nil
}

// transitionCreditReserved — forward path step 2: emit ReserveVehicle.
func transitionCreditReserved(s domain.Saga, evt Event, now time.Time) (domain.Saga, []Command, error) {
	if s.Status != domain.StatusInProgress || s.CurrentStep != domain.StepCreditReservation {
		return s, nil, nil // устаревшее/повторное событие, игнорируем
	}
	s.CurrentStep = domain.StepVehicleReservation
	s.UpdatedAt = now

	out := []Command{cmd(envelope.DomainVehicle, envelope.VerbReserve, envelope.ReserveVehicleCmd{
		TransactionID: s.TransactionID,
		VehicleID:     s.VehicleID,
	})}
	return s, out, nil
}

// transitionCreditReservationFailed — terminal FAILED, no compensation needed.
func transitionCreditReservationFailed(s domain.Saga, evt Event, now time.Time) (domain.Saga, []Command, error) {
	if s.Status.IsTerminal() {
		return s, nil, nil
	}
	s.Status = domain.StatusFailed
	s.CurrentStep = domain.StepCreditReservationFailed
	s.Context.Error = evt.Reason
	s.UpdatedAt = now
	return s, nil, nil
}

// transitionVehicleReserved — forward path step 3: emit GeneratePaymentCode.
func transitionVehicleReserved(s domain.Saga, evt Event, now time.Time) (domain.Saga, []Command, error) {
	if s.Status != domain.StatusInProgress || s.CurrentStep != domain.StepVehicleReservation {
		return s, nil, nil
	}
	s.CurrentStep = domain.StepPaymentCodeGeneration
	s.UpdatedAt = now

	out := []Command{cmd(envelope.DomainPayment, envelope.VerbGenerateCode, envelope.GeneratePaymentCodeCmd{
		TransactionID: s.TransactionID,
		CustomerID:    s.CustomerID,
		VehicleID:     s.VehicleID,
		Amount:        s.Amount,
		PaymentType:   s.PaymentType,
	})}
	return s, out, nil
}

// transitionVehicleReservationFailed — COMPENSATING(CREDIT_RELEASE), emit ReleaseCredit.
func transitionVehicleReservationFailed(s domain.Saga, evt Event, now time.Time) (domain.Saga, []Command, error) {
	if s.Status.IsTerminal() {
		return s, nil, nil
	}
	s.Status = domain.StatusCompensating
	s.CurrentStep = domain.StepCreditRelease
	s.Context.Error = evt.Reason
	s.UpdatedAt = now

	out := []Command{cmd(envelope.DomainCredit, envelope.VerbRelease, envelope.ReleaseCreditCmd{
		TransactionID: s.TransactionID,
		CustomerID:    s.CustomerID,
		Amount:        s.Amount,
		PaymentType:   s.PaymentType,
	})}
	return s, out, nil
}

// transitionPaymentCodeGenerated — forward path step 4: stash code, emit ProcessPayment(pix).
func transitionPaymentCodeGenerated(s domain.Saga, evt Event, now time.Time) (domain.Saga, []Command, error) {
	if s.Status != domain.StatusInProgress || s.CurrentStep != domain.StepPaymentCodeGeneration {
		return s, nil, nil
	}
	s.CurrentStep = domain.StepPaymentProcessing
	s.Context.PaymentCode = evt.PaymentCode
	s.UpdatedAt = now

	out := []Command{cmd(envelope.DomainPayment, envelope.VerbProcess, envelope.ProcessPaymentCmd{
		TransactionID: s.TransactionID,
		PaymentCode:   evt.PaymentCode,
		PaymentMethod: domain.PaymentMethodPix,
	})}
	return s, out, nil
}

// transitionPaymentFailureDuringForward handles both PaymentCodeGenerationFailed
// and PaymentFailed: both enter COMPENSATING(VEHICLE_RELEASE), emit ReleaseVehicle.
func transitionPaymentFailureDuringForward(s domain.Saga, evt Event, now time.Time) (domain.Saga, []Command, error) {
	if s.Status.IsTerminal() {
		return s, nil, nil
	}
	s.Status = domain.StatusCompensating
	s.CurrentStep = domain.StepVehicleRelease
	s.Context.Error = evt.Reason
	s.UpdatedAt = now

	out := []Command{cmd(envelope.DomainVehicle, envelope.VerbRelease, envelope.ReleaseVehicleCmd{
		TransactionID: s.TransactionID,
		VehicleID:     s.VehicleID,
	})}
	return s, out, nil
}

// transitionPaymentProcessed — forward path step 5: stash payment_id, advance to
// MARK_VEHICLE_AS_SOLD. No bus command is emitted here — the orchestrator's
// shell makes a synchronous call to the vehicle boundary and feeds the result
// back as EvtVehicleMarkedSold/EvtVehicleMarkSoldFailed.
//
// Late arrival during CANCELLING (open question 1): stash payment id in
// context and, rather than proceeding to MARK_VEHICLE_AS_SOLD, emit
// RefundPayment, keep CANCELLING and park the saga on PAYMENT_REFUND: release
// events arriving meanwhile are ignored, and the cancellation sub-machine
// resumes (re-issuing its release command) once PaymentRefunded arrives.
func transitionPaymentProcessed(s domain.Saga, evt Event, now time.Time) (domain.Saga, []Command, error) {
	s.Context.PaymentID = evt.PaymentID
	s.UpdatedAt = now

	if s.Status == domain.StatusCancelling {
		s.CurrentStep = domain.StepPaymentRefund
		out := []Command{cmd(envelope.DomainPayment, envelope.VerbRefund, envelope.RefundPaymentCmd{
			TransactionID: s.TransactionID,
			PaymentID:     evt.PaymentID,
		})}
		return s, out, nil
	}

	if s.Status != domain.StatusInProgress || s.CurrentStep != domain.StepPaymentProcessing {
		return s, nil, nil
	}
	s.CurrentStep = domain.StepMarkVehicleAsSold
	return s, nil, nil
}

// transitionVehicleMarkedSold — synchronous markAsSold succeeded: COMPLETED(SAGA_COMPLETE).
func transitionVehicleMarkedSold(s domain.Saga, now time.Time) (domain.Saga, []Command, error) {
	if s.Status != domain.StatusInProgress || s.CurrentStep != domain.StepMarkVehicleAsSold {
		return s, nil, nil
	}
	s.Status = domain.StatusCompleted
	s.CurrentStep = domain.StepSagaComplete
	s.UpdatedAt = now
	return s, nil, nil
}

// transitionVehicleMarkSoldFailed — synchronous markAsSold failed: escalate,
// a vehicle sold out-of-band after payment cannot be safely auto-compensated.
func transitionVehicleMarkSoldFailed(s domain.Saga, evt Event, now time.Time) (domain.Saga, []Command, error) {
	if s.Status.IsTerminal() {
		return s, nil, nil
	}
	s.Status = domain.StatusFailedRequiresManualIntervention
	s.Context.Error = evt.Reason
	s.UpdatedAt = now
	return s, nil, nil
}

// transitionVehicleReleased — polysemous: branches on status per the
// "Tie-breaking and dispatch discipline" rule (spec.md §4.1).
func transitionVehicleReleased(s domain.Saga, evt Event, now time.Time) (domain.Saga, []Command, error) {
	switch s.Status {
	case domain.StatusCancelling:
		if s.CurrentStep != domain.StepCancellationVehicleRelease {
			return s, nil, nil
		}
		s.CurrentStep = domain.StepCancellationCreditRelease
		s.UpdatedAt = now
		out := []Command{cmd(envelope.DomainCredit, envelope.VerbRelease, envelope.ReleaseCreditCmd{
			TransactionID: s.TransactionID,
			CustomerID:    s.CustomerID,
			Amount:        s.Amount,
			PaymentType:   s.PaymentType,
		})}
		return s, out, nil
	case domain.StatusCompensating:
		if s.CurrentStep != domain.StepVehicleRelease {
			return s, nil, nil
		}
		s.CurrentStep = domain.StepCreditRelease
		s.UpdatedAt = now
		out := []Command{cmd(envelope.DomainCredit, envelope.VerbRelease, envelope.ReleaseCreditCmd{
			TransactionID: s.TransactionID,
			CustomerID:    s.CustomerID,
			Amount:        s.Amount,
			PaymentType:   s.PaymentType,
		})}
		return s, out, nil
	default:
		return s, nil, nil // терминальное состояние — повторная доставка игнорируется
	}
}

// transitionCreditReleased — polysemous: branches on status.
func transitionCreditReleased(s domain.Saga, evt Event, now time.Time) (domain.Saga, []Command, error) {
	switch s.Status {
	case domain.StatusCancelling:
		if s.CurrentStep != domain.StepCancellationCreditRelease {
			return s, nil, nil
		}
		s.Status = domain.StatusCancelled
		s.CurrentStep = domain.StepCancellationComplete
		s.UpdatedAt = now
		out := []Command{sagaEvt(envelope.DomainSaga, envelope.PastCancelled, envelope.PurchaseCancelledEvt{
			TransactionID:         s.TransactionID,
			CustomerID:            s.CustomerID,
			VehicleID:             s.VehicleID,
			CancelledStep:         string(s.Context.CancelledFromStep),
			Reason:                s.Context.CancellationReason,
			CompensationCompleted: true,
			Timestamp:             now,
		})}
		return s, out, nil
	case domain.StatusCompensating:
		if s.CurrentStep != domain.StepCreditRelease {
			return s, nil, nil
		}
		s.Status = domain.StatusFailedCompensated
		s.CurrentStep = domain.StepCompensationComplete
		s.UpdatedAt = now
		return s, nil, nil
	default:
		return s, nil, nil
	}
}

// transitionPaymentRefunded — resumes the cancellation sub-machine after a
// late-arriving payment was refunded (open question 1 decision).
func transitionPaymentRefunded(s domain.Saga, evt Event, now time.Time) (domain.Saga, []Command, error) {
	if s.Status != domain.StatusCancelling {
		return s, nil, nil
	}
	switch s.Context.CancelledFromStep {
	case "", domain.StepCreditReservation:
		s.CurrentStep = domain.StepCancellationCreditRelease
		s.UpdatedAt = now
		out := []Command{cmd(envelope.DomainCredit, envelope.VerbRelease, envelope.ReleaseCreditCmd{
			TransactionID: s.TransactionID,
			CustomerID:    s.CustomerID,
			Amount:        s.Amount,
			PaymentType:   s.PaymentType,
		})}
		return s, out, nil
	default:
		s.CurrentStep = domain.StepCancellationVehicleRelease
		s.UpdatedAt = now
		out := []Command{cmd(envelope.DomainVehicle, envelope.VerbRelease, envelope.ReleaseVehicleCmd{
			TransactionID: s.TransactionID,
			VehicleID:     s.VehicleID,
		})}
		return s, out, nil
	}
}

// transitionPaymentRefundFailed — terminal, requires manual intervention.
func transitionPaymentRefundFailed(s domain.Saga, evt Event, now time.Time) (domain.Saga, []Command, error) {
	if s.Status.IsTerminal() {
		return s, nil, nil
	}
	s.Status = domain.StatusFailedRequiresManualIntervention
	s.CurrentStep = domain.StepPaymentRefundFailed
	s.Context.Error = evt.Reason
	s.UpdatedAt = now
	return s, nil, nil
}

// transitionStepTimeout — эскалация зависшей саги Timeout Worker'ом:
// автоматическая компенсация по таймауту небезопасна без знания, успел ли
// участник подтвердить свою сторону операции, поэтому любая зависшая
// нетерминальная сага переводится в ручное вмешательство.
func transitionStepTimeout(s domain.Saga, evt Event, now time.Time) (domain.Saga, []Command, error) {
	if s.Status.IsTerminal() {
		return s, nil, nil
	}
	s.Status = domain.StatusFailedRequiresManualIntervention
	s.Context.Error = evt.Reason
	s.UpdatedAt = now
	return s, nil, nil
}

// transitionCancelRequested implements the cancellation preconditions and
// dispatch-by-original-step described in spec.md §4.1.
func transitionCancelRequested(s domain.Saga, evt Event, now time.Time) (domain.Saga, []Command, error) {
	if s.Status.IsTerminal() {
		return s, nil, domain.ErrSagaTerminal
	}
	if s.Status == domain.StatusCancelling || s.Status == domain.StatusCancellationRequested {
		return s, nil, domain.ErrCancellationInProgress
	}

	originalStep := s.CurrentStep
	s.Context.CancelledFromStep = originalStep
	s.Context.CancellationReason = evt.CancelReason
	s.Context.CancellationRequestedAt = &now
	s.Status = domain.StatusCancellationRequested
	s.UpdatedAt = now

	switch originalStep {
	case "", domain.StepCreditReservation:
		s.Status = domain.StatusCancelling
		s.CurrentStep = domain.StepCancellationCreditRelease
		out := []Command{cmd(envelope.DomainCredit, envelope.VerbRelease, envelope.ReleaseCreditCmd{
			TransactionID: s.TransactionID,
			CustomerID:    s.CustomerID,
			Amount:        s.Amount,
			PaymentType:   s.PaymentType,
		})}
		return s, out, nil
	case domain.StepVehicleReservation, domain.StepPaymentCodeGeneration, domain.StepPaymentProcessing:
		s.Status = domain.StatusCancelling
		s.CurrentStep = domain.StepCancellationVehicleRelease
		out := []Command{cmd(envelope.DomainVehicle, envelope.VerbRelease, envelope.ReleaseVehicleCmd{
			TransactionID: s.TransactionID,
			VehicleID:     s.VehicleID,
		})}
		return s, out, nil
	case domain.StepMarkVehicleAsSold, domain.StepSagaComplete:
		s.Status = domain.StatusCancellationFailed
		s.Context.Error = "Transaction already completed"
		out := []Command{sagaEvt(envelope.DomainSaga, envelope.PastCancellationFailed, envelope.PurchaseCancellationFailedEvt{
			TransactionID: s.TransactionID,
			Reason:        s.Context.Error,
			CurrentStep:   string(originalStep),
			Timestamp:     now,
		})}
		return s, out, nil
	default:
		s.Status = domain.StatusCancellationFailed
		s.Context.Error = "Transaction already completed"
		out := []Command{sagaEvt(envelope.DomainSaga, envelope.PastCancellationFailed, envelope.PurchaseCancellationFailedEvt{
			TransactionID: s.TransactionID,
			Reason:        s.Context.Error,
			CurrentStep:   string(originalStep),
			Timestamp:     now,
		})}
		return s, out, nil
	}
}
