package saga

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/vehicle-saga/pkg/envelope"
	"example.com/vehicle-saga/services/orchestrator/internal/domain"
)

func baseSaga() domain.Saga {
	return domain.Saga{
		TransactionID: "tx-1",
		CustomerID:    "customer-1",
		VehicleID:     "vehicle-1",
		Amount:        75000,
		PaymentType:   envelope.PaymentTypeCash,
		Status:        domain.StatusInProgress,
	}
}

func TestTransition_Start(t *testing.T) {
	s := *domain.NewSaga("tx-1", "", "", 0, "")
	now := time.Now()

	out, cmds, err := Transition(s, Event{
		Kind:        EvtStart,
		CustomerID:  "customer-1",
		VehicleID:   "vehicle-1",
		Amount:      75000,
		PaymentType: envelope.PaymentTypeCash,
	}, now)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, out.Status)
	assert.Equal(t, domain.StepCreditReservation, out.CurrentStep)
	require.Len(t, cmds, 1)
	assert.Equal(t, envelope.DomainCredit, cmds[0].Domain)
	assert.Equal(t, envelope.VerbReserve, cmds[0].Verb)
	body, ok := cmds[0].Body.(envelope.ReserveCreditCmd)
	require.True(t, ok)
	assert.Equal(t, "customer-1", body.CustomerID)
	assert.Equal(t, 75000.0, body.Amount)
}

func TestTransition_ForwardHappyPath(t *testing.T) {
	now := time.Now()
	s := baseSaga()
	s.CurrentStep = domain.StepCreditReservation

	s, cmds, err := Transition(s, Event{Kind: EvtCreditReserved}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StepVehicleReservation, s.CurrentStep)
	require.Len(t, cmds, 1)
	assert.Equal(t, envelope.DomainVehicle, cmds[0].Domain)

	s, cmds, err = Transition(s, Event{Kind: EvtVehicleReserved}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StepPaymentCodeGeneration, s.CurrentStep)
	require.Len(t, cmds, 1)
	assert.Equal(t, envelope.DomainPayment, cmds[0].Domain)
	assert.Equal(t, envelope.VerbGenerateCode, cmds[0].Verb)

	s, cmds, err = Transition(s, Event{Kind: EvtPaymentCodeGenerated, PaymentCode: "ABCDEFGH"}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StepPaymentProcessing, s.CurrentStep)
	assert.Equal(t, "ABCDEFGH", s.Context.PaymentCode)
	require.Len(t, cmds, 1)
	body, ok := cmds[0].Body.(envelope.ProcessPaymentCmd)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentMethodPix, body.PaymentMethod)

	s, cmds, err = Transition(s, Event{Kind: EvtPaymentProcessed, PaymentID: "payment-1"}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StepMarkVehicleAsSold, s.CurrentStep)
	assert.Equal(t, "payment-1", s.Context.PaymentID)
	assert.Empty(t, cmds)

	s, cmds, err = Transition(s, Event{Kind: EvtVehicleMarkedSold}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, s.Status)
	assert.Equal(t, domain.StepSagaComplete, s.CurrentStep)
	assert.Empty(t, cmds)
}

func TestTransition_StaleEventsAreIgnored(t *testing.T) {
	now := time.Now()
	s := baseSaga()
	s.CurrentStep = domain.StepVehicleReservation // уже прошли CREDIT_RESERVATION

	out, cmds, err := Transition(s, Event{Kind: EvtCreditReserved}, now)
	require.NoError(t, err)
	assert.Equal(t, s, out, "устаревшее событие не должно менять состояние")
	assert.Nil(t, cmds)
}

func TestTransition_CreditReservationFailed(t *testing.T) {
	now := time.Now()
	s := baseSaga()
	s.CurrentStep = domain.StepCreditReservation

	out, cmds, err := Transition(s, Event{Kind: EvtCreditReservationFailed, Reason: "недостаточно средств"}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, out.Status)
	assert.Equal(t, "недостаточно средств", out.Context.Error)
	assert.Nil(t, cmds)
}

func TestTransition_VehicleReservationFailed_CompensatesCredit(t *testing.T) {
	now := time.Now()
	s := baseSaga()
	s.CurrentStep = domain.StepVehicleReservation

	out, cmds, err := Transition(s, Event{Kind: EvtVehicleReservationFailed, Reason: "уже продан"}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompensating, out.Status)
	assert.Equal(t, domain.StepCreditRelease, out.CurrentStep)
	require.Len(t, cmds, 1)
	assert.Equal(t, envelope.DomainCredit, cmds[0].Domain)
	assert.Equal(t, envelope.VerbRelease, cmds[0].Verb)
}

func TestTransition_PaymentFailureDuringForward_CompensatesVehicle(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		kind EventKind
	}{
		{"код оплаты не сгенерирован", EvtPaymentCodeGenFailed},
		{"оплата не прошла", EvtPaymentFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSaga()
			s.CurrentStep = domain.StepPaymentProcessing

			out, cmds, err := Transition(s, Event{Kind: tt.kind, Reason: "boom"}, now)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusCompensating, out.Status)
			assert.Equal(t, domain.StepVehicleRelease, out.CurrentStep)
			require.Len(t, cmds, 1)
			assert.Equal(t, envelope.DomainVehicle, cmds[0].Domain)
			assert.Equal(t, envelope.VerbRelease, cmds[0].Verb)
		})
	}
}

func TestTransition_PaymentProcessed_LateArrivalDuringCancelling(t *testing.T) {
	now := time.Now()
	s := baseSaga()
	s.Status = domain.StatusCancelling
	s.CurrentStep = domain.StepCancellationVehicleRelease

	out, cmds, err := Transition(s, Event{Kind: EvtPaymentProcessed, PaymentID: "payment-late"}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelling, out.Status, "отмена должна продолжаться, а не откатываться MARK_VEHICLE_AS_SOLD")
	assert.Equal(t, "payment-late", out.Context.PaymentID)
	require.Len(t, cmds, 1)
	assert.Equal(t, envelope.DomainPayment, cmds[0].Domain)
	assert.Equal(t, envelope.VerbRefund, cmds[0].Verb)
	body, ok := cmds[0].Body.(envelope.RefundPaymentCmd)
	require.True(t, ok)
	assert.Equal(t, "payment-late", body.PaymentID)
}

func TestTransition_VehicleMarkSoldFailed_RequiresManualIntervention(t *testing.T) {
	now := time.Now()
	s := baseSaga()
	s.CurrentStep = domain.StepMarkVehicleAsSold

	out, cmds, err := Transition(s, Event{Kind: EvtVehicleMarkSoldFailed, Reason: "конфликт версии"}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailedRequiresManualIntervention, out.Status)
	assert.Equal(t, "конфликт версии", out.Context.Error)
	assert.Nil(t, cmds)
}

func TestTransition_VehicleReleased_BranchesOnStatus(t *testing.T) {
	now := time.Now()

	t.Run("компенсация вперёд", func(t *testing.T) {
		s := baseSaga()
		s.Status = domain.StatusCompensating
		s.CurrentStep = domain.StepVehicleRelease

		out, cmds, err := Transition(s, Event{Kind: EvtVehicleReleased}, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StepCreditRelease, out.CurrentStep)
		require.Len(t, cmds, 1)
	})

	t.Run("отмена", func(t *testing.T) {
		s := baseSaga()
		s.Status = domain.StatusCancelling
		s.CurrentStep = domain.StepCancellationVehicleRelease

		out, cmds, err := Transition(s, Event{Kind: EvtVehicleReleased}, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StepCancellationCreditRelease, out.CurrentStep)
		require.Len(t, cmds, 1)
	})

	t.Run("неактуальный шаг игнорируется", func(t *testing.T) {
		s := baseSaga()
		s.Status = domain.StatusCompensating
		s.CurrentStep = domain.StepCreditRelease // уже продвинулись дальше

		out, cmds, err := Transition(s, Event{Kind: EvtVehicleReleased}, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StepCreditRelease, out.CurrentStep)
		assert.Nil(t, cmds)
	})

	t.Run("терминальный статус игнорируется", func(t *testing.T) {
		s := baseSaga()
		s.Status = domain.StatusCompleted
		s.CurrentStep = domain.StepSagaComplete

		out, cmds, err := Transition(s, Event{Kind: EvtVehicleReleased}, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, out.Status)
		assert.Nil(t, cmds)
	})
}

func TestTransition_CreditReleased_BranchesOnStatus(t *testing.T) {
	now := time.Now()

	t.Run("компенсация завершается FAILED_COMPENSATED", func(t *testing.T) {
		s := baseSaga()
		s.Status = domain.StatusCompensating
		s.CurrentStep = domain.StepCreditRelease

		out, _, err := Transition(s, Event{Kind: EvtCreditReleased}, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailedCompensated, out.Status)
		assert.Equal(t, domain.StepCompensationComplete, out.CurrentStep)
	})

	t.Run("отмена завершается CANCELLED", func(t *testing.T) {
		s := baseSaga()
		s.Status = domain.StatusCancelling
		s.CurrentStep = domain.StepCancellationCreditRelease

		out, cmds, err := Transition(s, Event{Kind: EvtCreditReleased}, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, out.Status)
		assert.Equal(t, domain.StepCancellationComplete, out.CurrentStep)
		require.Len(t, cmds, 1)
		assert.True(t, cmds[0].IsEvent)
		assert.Equal(t, envelope.DomainSaga, cmds[0].Domain)
		assert.Equal(t, envelope.PastCancelled, cmds[0].Verb)
	})
}

func TestTransition_PaymentRefunded_ResumesCancellation(t *testing.T) {
	now := time.Now()

	t.Run("отмена была на шаге резервирования кредита", func(t *testing.T) {
		s := baseSaga()
		s.Status = domain.StatusCancelling
		s.Context.CancelledFromStep = domain.StepCreditReservation

		out, cmds, err := Transition(s, Event{Kind: EvtPaymentRefunded}, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StepCancellationCreditRelease, out.CurrentStep)
		require.Len(t, cmds, 1)
		assert.Equal(t, envelope.DomainCredit, cmds[0].Domain)
	})

	t.Run("отмена была позже резервирования кредита", func(t *testing.T) {
		s := baseSaga()
		s.Status = domain.StatusCancelling
		s.Context.CancelledFromStep = domain.StepPaymentProcessing

		out, cmds, err := Transition(s, Event{Kind: EvtPaymentRefunded}, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StepCancellationVehicleRelease, out.CurrentStep)
		require.Len(t, cmds, 1)
		assert.Equal(t, envelope.DomainVehicle, cmds[0].Domain)
	})

	t.Run("игнорируется вне CANCELLING", func(t *testing.T) {
		s := baseSaga()
		s.Status = domain.StatusInProgress

		out, cmds, err := Transition(s, Event{Kind: EvtPaymentRefunded}, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusInProgress, out.Status)
		assert.Nil(t, cmds)
	})
}

func TestTransition_PaymentRefundFailed_RequiresManualIntervention(t *testing.T) {
	now := time.Now()
	s := baseSaga()
	s.Status = domain.StatusCancelling

	out, cmds, err := Transition(s, Event{Kind: EvtPaymentRefundFailed, Reason: "платёж не найден"}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailedRequiresManualIntervention, out.Status)
	assert.Equal(t, domain.StepPaymentRefundFailed, out.CurrentStep)
	assert.Nil(t, cmds)
}

func TestTransition_StepTimeout_EscalatesNonTerminalSaga(t *testing.T) {
	now := time.Now()
	s := baseSaga()
	s.CurrentStep = domain.StepVehicleReservation

	out, cmds, err := Transition(s, Event{Kind: EvtStepTimeout, Reason: "нет продвижения 10 минут"}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailedRequiresManualIntervention, out.Status)
	assert.Nil(t, cmds)
}

func TestTransition_StepTimeout_IgnoredForTerminalSaga(t *testing.T) {
	now := time.Now()
	s := baseSaga()
	s.Status = domain.StatusCompleted

	out, cmds, err := Transition(s, Event{Kind: EvtStepTimeout}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, out.Status)
	assert.Nil(t, cmds)
}

func TestTransition_CancelRequested(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name         string
		currentStep  domain.Step
		wantStatus   domain.Status
		wantStep     domain.Step
		wantCmdCount int
		wantDomain   string
	}{
		{"на шаге резервирования кредита", domain.StepCreditReservation, domain.StatusCancelling, domain.StepCancellationCreditRelease, 1, envelope.DomainCredit},
		{"на шаге резервирования автомобиля", domain.StepVehicleReservation, domain.StatusCancelling, domain.StepCancellationVehicleRelease, 1, envelope.DomainVehicle},
		{"на шаге генерации кода оплаты", domain.StepPaymentCodeGeneration, domain.StatusCancelling, domain.StepCancellationVehicleRelease, 1, envelope.DomainVehicle},
		{"на шаге обработки платежа", domain.StepPaymentProcessing, domain.StatusCancelling, domain.StepCancellationVehicleRelease, 1, envelope.DomainVehicle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSaga()
			s.CurrentStep = tt.currentStep

			out, cmds, err := Transition(s, Event{Kind: EvtCancelRequested, CancelReason: "клиент передумал"}, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, tt.wantStep, out.CurrentStep)
			assert.Equal(t, tt.currentStep, out.Context.CancelledFromStep)
			require.Len(t, cmds, tt.wantCmdCount)
			assert.Equal(t, tt.wantDomain, cmds[0].Domain)
		})
	}

	t.Run("транзакция уже завершена — отмена отклоняется", func(t *testing.T) {
		s := baseSaga()
		s.CurrentStep = domain.StepMarkVehicleAsSold

		out, cmds, err := Transition(s, Event{Kind: EvtCancelRequested}, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancellationFailed, out.Status)
		require.Len(t, cmds, 1)
		assert.True(t, cmds[0].IsEvent)
		assert.Equal(t, envelope.DomainSaga, cmds[0].Domain)
		assert.Equal(t, envelope.PastCancellationFailed, cmds[0].Verb)
	})

	t.Run("повторный запрос отмены отклоняется", func(t *testing.T) {
		s := baseSaga()
		s.Status = domain.StatusCancelling

		_, _, err := Transition(s, Event{Kind: EvtCancelRequested}, now)
		assert.ErrorIs(t, err, domain.ErrCancellationInProgress)
	})

	t.Run("отмена терминальной саги отклоняется", func(t *testing.T) {
		s := baseSaga()
		s.Status = domain.StatusCompleted

		_, _, err := Transition(s, Event{Kind: EvtCancelRequested}, now)
		assert.ErrorIs(t, err, domain.ErrSagaTerminal)
	})
}

func TestTransition_UnknownEvent(t *testing.T) {
	s := baseSaga()
	_, _, err := Transition(s, Event{Kind: "НЕИЗВЕСТНОЕ_СОБЫТИЕ"}, time.Now())
	assert.Error(t, err)
}
