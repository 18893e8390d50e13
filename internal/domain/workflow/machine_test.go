package workflow

import (
	"context"
	"errors"
	"testing"
)

var errNotOwner = errors.New("caller does not own voucher")

func buildLifecycle(redeemGuard, cancelGuard GuardFunc) StateMachineBuilder {
	builder := NewBuilder()
	builder.Configure(StateActive).
		PermitIf(TriggerRedeem, StateUsed, redeemGuard).
		PermitIf(TriggerCancel, StateCancelled, cancelGuard).
		Permit(TriggerExpire, StateExpired)
	return builder
}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateActive, false},
		{StateUsed, true},
		{StateCancelled, true},
		{StateExpired, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"active", StateActive, true},
		{"expired", StateExpired, true},
		{"invalid state", State("pending"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTrigger_String(t *testing.T) {
	if got := TriggerRedeem.String(); got != "REDEEM" {
		t.Errorf("Trigger.String() = %v, want %v", got, "REDEEM")
	}
}

func TestBuilder_Configure(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StateActive)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}

	if config2 := builder.Configure(StateActive); config != config2 {
		t.Error("Configure() should return same config for same state")
	}
}

func TestBuilder_ConfigurePanicsOnInvalidState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid state")
		}
	}()

	NewBuilder().Configure(State("INVALID"))
}

func TestBuilder_BuildPanicsOnInvalidInitialState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial state")
		}
	}()

	NewBuilder().Build(State("INVALID"))
}

func TestStateConfiguration_PermitPanicsOnInvalidState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic on invalid target state")
		}
	}()

	NewBuilder().Configure(StateActive).Permit(TriggerRedeem, State("INVALID"))
}

func TestStateMachine_Redeem(t *testing.T) {
	machine := buildLifecycle(nil, nil).Build(StateActive)

	if err := machine.Fire(context.Background(), TriggerRedeem); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if machine.State() != StateUsed {
		t.Errorf("State after Fire() = %v, want %v", machine.State(), StateUsed)
	}
}

func TestStateMachine_GuardRejects(t *testing.T) {
	guard := func(ctx context.Context) error { return errNotOwner }
	machine := buildLifecycle(guard, nil).Build(StateActive)

	err := machine.Fire(context.Background(), TriggerRedeem)
	if err == nil {
		t.Fatal("Fire() should fail when guard fails")
	}
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}
	if !errors.Is(err, errNotOwner) {
		t.Errorf("Fire() error = %v, want guard error %v", err, errNotOwner)
	}
	if machine.State() != StateActive {
		t.Errorf("State should remain %v after failed Fire(), got %v", StateActive, machine.State())
	}
}

func TestStateMachine_GuardPasses(t *testing.T) {
	guard := func(ctx context.Context) error { return nil }
	machine := buildLifecycle(nil, guard).Build(StateActive)

	if err := machine.Fire(context.Background(), TriggerCancel); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if machine.State() != StateCancelled {
		t.Errorf("State after Fire() = %v, want %v", machine.State(), StateCancelled)
	}
}

func TestStateMachine_FirstPassingGuardWins(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateActive).
		PermitIf(TriggerRedeem, StateExpired, func(ctx context.Context) error { return errNotOwner }).
		PermitIf(TriggerRedeem, StateUsed, func(ctx context.Context) error { return nil })

	machine := builder.Build(StateActive)
	if err := machine.Fire(context.Background(), TriggerRedeem); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}
	if machine.State() != StateUsed {
		t.Errorf("State after Fire() = %v, want %v", machine.State(), StateUsed)
	}
}

func TestStateMachine_TerminalStatesRejectEveryTrigger(t *testing.T) {
	builder := buildLifecycle(nil, nil)

	for _, state := range []State{StateUsed, StateCancelled, StateExpired} {
		for _, trigger := range []Trigger{TriggerRedeem, TriggerCancel, TriggerExpire} {
			t.Run(state.String()+"/"+trigger.String(), func(t *testing.T) {
				machine := builder.Build(state)

				if machine.CanFire(trigger) {
					t.Errorf("CanFire(%v) from %v should be false", trigger, state)
				}

				err := machine.Fire(context.Background(), trigger)
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
				}
				if machine.State() != state {
					t.Errorf("State changed to %v, want %v", machine.State(), state)
				}
			})
		}
	}
}

func TestStateMachine_PermittedTriggers(t *testing.T) {
	machine := buildLifecycle(nil, nil).Build(StateActive)

	triggers := machine.PermittedTriggers()
	if len(triggers) != 3 {
		t.Errorf("PermittedTriggers() returned %d triggers, want 3", len(triggers))
	}

	if got := buildLifecycle(nil, nil).Build(StateUsed).PermittedTriggers(); len(got) != 0 {
		t.Errorf("Terminal state should have 0 permitted triggers, got %d", len(got))
	}
}

func TestStateMachine_Immutability(t *testing.T) {
	builder := buildLifecycle(nil, nil)

	machine1 := builder.Build(StateActive)
	machine2 := builder.Build(StateActive)

	if err := machine1.Fire(context.Background(), TriggerExpire); err != nil {
		t.Fatalf("Fire() failed: %v", err)
	}

	if machine2.State() != StateActive {
		t.Errorf("machine2 state = %v, want %v (machines should be independent)", machine2.State(), StateActive)
	}

	// Configuring the builder afterwards must not leak into built machines
	builder.Configure(StateExpired).Permit(TriggerRedeem, StateUsed)
	if machine1.CanFire(TriggerRedeem) {
		t.Error("built machine should not see later builder configuration")
	}
}
