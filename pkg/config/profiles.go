package config

import (
	"fmt"
	"time"
)

// Tuning profiles. The two firmware variants this controller grew out of
// differed only in these values.
const (
	// ProfileCoarse takes large steps and never lets the converter drop below
	// the sweep start duty.
	ProfileCoarse = "coarse"
	// ProfileFine takes small steps over the full duty range.
	ProfileFine = "fine"
)

// Profile returns the control section of the named tuning profile.
func Profile(name string) (ControlConfig, error) {
	switch name {
	case ProfileCoarse:
		return coarseProfile(), nil
	case ProfileFine:
		ctl := baseProfile()
		ctl.DutyMin = 0
		ctl.DutyFloor = 0
		ctl.Step = 5
		return ctl, nil
	default:
		return ControlConfig{}, fmt.Errorf("unknown profile %q", name)
	}
}

// coarseProfile is the default tuning.
func coarseProfile() ControlConfig {
	ctl := baseProfile()
	ctl.DutyMin = 500
	ctl.DutyFloor = 500
	ctl.Step = 20
	return ctl
}

// baseProfile holds the values both profiles share.
func baseProfile() ControlConfig {
	return ControlConfig{
		PWMPeriod:   2000, // 200 MHz hi-res clock / 2000 = 100 kHz switching
		InitialDuty: 1460,
		DutyMax:     2000,
		SweepStart:  500,
		SweepStep:   20,
		SweepTime:   200,
		SettleDelay: time.Millisecond,
		CycleDelay:  2 * time.Millisecond,
	}
}

// Profiles lists the known profile names.
func Profiles() []string {
	return []string{ProfileCoarse, ProfileFine}
}
