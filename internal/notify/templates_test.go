package notify

import (
	"strings"
	"testing"
	"time"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func testSnapshot(loc *time.Location) Snapshot {
	start := time.Date(2025, 6, 2, 14, 0, 0, 0, loc)
	due := start.Add(-time.Hour)
	return Snapshot{
		AppointmentID:    "0b7a3c1e-0000-4000-8000-000000000001",
		ClientName:       "Maria <b>Silva</b>",
		ClientEmail:      "maria@example.com",
		ServiceTitle:     "Sessão de Radiestesia Terapêutica",
		StartTime:        start,
		EndTime:          start.Add(2 * time.Hour),
		PaymentMethod:    "PIX",
		TotalAmount:      45000,
		PaidAmount:       10000,
		RemainingAmount:  35000,
		SecondPaymentDue: &due,
		MeetLink:         "https://meet.google.com/abc-defg-hij",
	}
}

func TestFormatBRL(t *testing.T) {
	cases := map[int64]string{
		0:         "R$ 0,00",
		5:         "R$ 0,05",
		35000:     "R$ 350,00",
		123456:    "R$ 1.234,56",
		100000000: "R$ 1.000.000,00",
		-10000:    "-R$ 100,00",
	}
	for cents, want := range cases {
		if got := FormatBRL(cents); got != want {
			t.Errorf("FormatBRL(%d) = %q, want %q", cents, got, want)
		}
	}
}

func TestRenderConfirmation(t *testing.T) {
	loc := saoPaulo(t)
	r := NewRenderer(RendererConfig{PractitionerName: "Joana Savi", PublicBaseURL: "https://agenda.example.com/", Location: loc})

	msg, err := r.Render(KindConfirmation, testSnapshot(loc))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if msg.Subject != "Agendamento confirmado - 02 de junho de 2025 às 14:00" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if msg.To != "maria@example.com" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	for _, want := range []string{"R$ 350,00", "02/06/2025 às 13:00", "14:00 às 16:00", "https://meet.google.com/abc-defg-hij"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("text body missing %q:\n%s", want, msg.Body)
		}
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("html body missing %q", want)
		}
	}
	if strings.Contains(msg.HTML, "<b>Silva</b>") {
		t.Fatalf("client name must be escaped in html")
	}
	if !strings.Contains(msg.HTML, "Joana Savi") {
		t.Fatalf("layout missing practitioner name")
	}
}

func TestRenderConfirmationCardHasNoRemainder(t *testing.T) {
	loc := saoPaulo(t)
	snap := testSnapshot(loc)
	snap.PaymentMethod = "CARD"
	snap.TotalAmount, snap.PaidAmount, snap.RemainingAmount = 50000, 50000, 0
	snap.SecondPaymentDue = nil

	msg, err := NewRenderer(RendererConfig{Location: loc}).Render(KindConfirmation, snap)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(msg.Body, "Lembrete") {
		t.Fatalf("card confirmation should not mention a second payment:\n%s", msg.Body)
	}
	if !strings.Contains(msg.Body, "Cartão (R$ 500,00)") {
		t.Fatalf("expected card label, got:\n%s", msg.Body)
	}
}

func TestRenderCancellationRefund(t *testing.T) {
	loc := saoPaulo(t)
	r := NewRenderer(RendererConfig{Location: loc})

	snap := testSnapshot(loc)
	snap.RefundAmount = 10000
	msg, err := r.Render(KindCancellation, snap)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(msg.Body, "Reembolso: R$ 100,00") {
		t.Fatalf("expected refund line, got:\n%s", msg.Body)
	}

	snap.RefundAmount = 0
	msg, err = r.Render(KindCancellation, snap)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(msg.Body, "sem direito a reembolso") {
		t.Fatalf("expected no-refund notice, got:\n%s", msg.Body)
	}
}

func TestRenderSessionReminderUntil(t *testing.T) {
	loc := saoPaulo(t)
	snap := testSnapshot(loc)
	cases := []struct {
		now  time.Time
		want string
	}{
		{snap.StartTime.Add(-30 * time.Minute), "em 30 minutos"},
		{snap.StartTime.Add(-2 * time.Hour), "hoje às 14:00"},
		{snap.StartTime.Add(-20 * time.Hour), "amanhã às 14:00"},
		{snap.StartTime.Add(-72 * time.Hour), "em 02 de junho de 2025 às 14:00"},
	}
	for _, tc := range cases {
		r := NewRenderer(RendererConfig{Location: loc}).WithClock(func() time.Time { return tc.now })
		msg, err := r.Render(KindSessionReminder, snap)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if msg.Subject != "Lembrete: sua sessão é "+tc.want {
			t.Errorf("now=%s: unexpected subject %q", tc.now, msg.Subject)
		}
	}
}

func TestRenderPaymentReminderAndFeedbackLinks(t *testing.T) {
	loc := saoPaulo(t)
	r := NewRenderer(RendererConfig{PublicBaseURL: "https://agenda.example.com", Location: loc})
	snap := testSnapshot(loc)

	msg, err := r.Render(KindPaymentReminder, snap)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(msg.Body, "https://agenda.example.com/agendamentos/"+snap.AppointmentID) {
		t.Fatalf("payment reminder missing manage link:\n%s", msg.Body)
	}

	msg, err = r.Render(KindFeedback, snap)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(msg.HTML, "https://agenda.example.com/feedback/"+snap.AppointmentID) {
		t.Fatalf("feedback missing link")
	}
}

func TestRenderErrors(t *testing.T) {
	r := NewRenderer(RendererConfig{})
	if _, err := r.Render(Kind("unknown"), Snapshot{ClientEmail: "a@example.com"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := r.Render(KindConfirmation, Snapshot{}); err == nil {
		t.Fatalf("expected error without recipient")
	}
}
