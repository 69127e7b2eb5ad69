package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mohamed-Adel17/CareerRouteBack/internal/faults"
)

func waitFor(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job to run")
		return nil
	}
}

func TestRunnerDispatchesImmediateJob(t *testing.T) {
	runner := NewRunner(2, zerolog.Nop())
	defer runner.Stop()

	ran := make(chan []byte, 1)
	runner.Register("greet", func(_ context.Context, payload []byte) error {
		ran <- payload
		return nil
	})

	if _, err := runner.Enqueue("greet", map[string]string{"name": "mira"}, 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	var decoded struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(waitFor(t, ran), &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded.Name != "mira" {
		t.Fatalf("expected payload to round-trip, got %q", decoded.Name)
	}
}

func TestRunnerHonorsDelay(t *testing.T) {
	runner := NewRunner(1, zerolog.Nop())
	defer runner.Stop()

	ran := make(chan []byte, 1)
	runner.Register("later", func(_ context.Context, payload []byte) error {
		ran <- payload
		return nil
	})

	start := time.Now()
	if _, err := runner.Enqueue("later", nil, 50*time.Millisecond); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, ran)
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("job ran after %v, before its delay elapsed", elapsed)
	}
}

func TestRunnerCancelPreventsDelayedJob(t *testing.T) {
	runner := NewRunner(1, zerolog.Nop())
	defer runner.Stop()

	ran := make(chan []byte, 1)
	runner.Register("later", func(_ context.Context, payload []byte) error {
		ran <- payload
		return nil
	})

	handle, err := runner.Enqueue("later", nil, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	runner.Cancel(handle)

	select {
	case <-ran:
		t.Fatal("cancelled job must not run")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRunnerCancelAfterRunIsNoop(t *testing.T) {
	runner := NewRunner(1, zerolog.Nop())
	defer runner.Stop()

	ran := make(chan []byte, 1)
	runner.Register("once", func(_ context.Context, payload []byte) error {
		ran <- payload
		return nil
	})

	handle, err := runner.Enqueue("once", nil, 0)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, ran)

	runner.Cancel(handle)
	runner.Cancel(handle)
}

func TestRunnerRejectsUnregisteredJobType(t *testing.T) {
	runner := NewRunner(1, zerolog.Nop())
	defer runner.Stop()

	_, err := runner.Enqueue("nobody-home", nil, 0)
	if !faults.Is(err, faults.KindConfiguration) {
		t.Fatalf("expected configuration fault, got %v", err)
	}
}

func TestRunnerSurvivesPanickingHandler(t *testing.T) {
	runner := NewRunner(1, zerolog.Nop())
	defer runner.Stop()

	ran := make(chan []byte, 1)
	runner.Register("boom", func(context.Context, []byte) error {
		panic("handler bug")
	})
	runner.Register("after", func(_ context.Context, payload []byte) error {
		ran <- payload
		return nil
	})

	if _, err := runner.Enqueue("boom", nil, 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := runner.Enqueue("after", nil, 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, ran)
}

func TestRunnerRefusesWorkAfterStop(t *testing.T) {
	runner := NewRunner(1, zerolog.Nop())
	runner.Register("late", func(context.Context, []byte) error { return nil })
	runner.Stop()

	_, err := runner.Enqueue("late", nil, 0)
	if !faults.Is(err, faults.KindUnavailable) {
		t.Fatalf("expected unavailable fault after stop, got %v", err)
	}
}
