package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Profile     string            `yaml:"profile"`
	Serial      SerialConfig      `yaml:"serial"`
	Control     ControlConfig     `yaml:"control"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Inverter    InverterConfig    `yaml:"inverter"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Mock        MockConfig        `yaml:"mock"`
	Log         LogConfig         `yaml:"log"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// ControlConfig holds the tracking loop tuning. All duty values are PWM
// compare counts relative to PWMPeriod, not time.
type ControlConfig struct {
	PWMPeriod   int           `yaml:"pwm_period"`   // compare counts per PWM period
	InitialDuty int           `yaml:"initial_duty"` // duty applied before the first cycle
	DutyMin     int           `yaml:"duty_min"`     // actuator lower clamp
	DutyMax     int           `yaml:"duty_max"`     // actuator upper clamp, at most PWMPeriod
	DutyFloor   int           `yaml:"duty_floor"`   // lower clamp used by perturb and observe
	Step        int           `yaml:"step"`         // perturb and observe increment
	SweepStart  int           `yaml:"sweep_start"`  // first duty visited by a sweep
	SweepStep   int           `yaml:"sweep_step"`   // duty increment between sweep points
	SweepTime   int           `yaml:"sweep_time"`   // control cycles between sweeps
	SettleDelay time.Duration `yaml:"settle_delay"` // wait after each perturbation
	CycleDelay  time.Duration `yaml:"cycle_delay"`  // rest between control cycles
}

// AcquisitionConfig contains batch sampling parameters.
type AcquisitionConfig struct {
	SamplesPerChannel int           `yaml:"samples_per_channel"` // must be a power of two
	Timeout           time.Duration `yaml:"timeout"`             // 0 waits forever
}

// InverterConfig contains waveform generator timing in ticks.
type InverterConfig struct {
	FullPeriod int           `yaml:"full_period"`
	DeadWidth  int           `yaml:"dead_width"`
	Tick       time.Duration `yaml:"tick"`
}

// CalibrationConfig maps raw ADC counts to physical units. It is only used
// for status output, the tracking loop works on raw counts.
type CalibrationConfig struct {
	VRef           float64 `yaml:"vref"`             // ADC reference (V)
	Resolution     int     `yaml:"resolution"`       // ADC resolution in bits
	DividerR1      float64 `yaml:"divider_r1"`       // panel voltage divider, top resistor (Ohm)
	DividerR2      float64 `yaml:"divider_r2"`       // panel voltage divider, bottom resistor (Ohm)
	CurrentPerVolt float64 `yaml:"current_per_volt"` // current sense transconductance (A/V)
}

// MockConfig contains simulated converter configuration.
type MockConfig struct {
	ConversionTime time.Duration `yaml:"conversion_time"` // latency of one conversion
	BatteryVoltage float64       `yaml:"battery_voltage"` // converter output voltage (V)
	Substrings     []Substring   `yaml:"substrings"`      // series panel sections with bypass diodes
	NoiseCounts    int           `yaml:"noise_counts"`    // peak ADC noise added to each reading
	Seed           int64         `yaml:"seed"`
}

// Substring describes one bypass-diode protected section of the panel.
type Substring struct {
	Cells      int     `yaml:"cells"`
	Irradiance float64 `yaml:"irradiance"` // 0..1 of full sun
}

// LogConfig contains host logging options.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Every int    `yaml:"every"` // log every Nth control cycle (0 disables periodic status)
}

// Default returns a default configuration using the coarse profile.
func Default() *Config {
	cfg := &Config{
		Profile: ProfileCoarse,
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		Acquisition: AcquisitionConfig{
			SamplesPerChannel: 32,
			Timeout:           100 * time.Millisecond,
		},
		Inverter: InverterConfig{
			FullPeriod: 517,
			DeadWidth:  350,
			Tick:       20 * time.Microsecond,
		},
		Calibration: CalibrationConfig{
			VRef:           3.3,
			Resolution:     10,
			DividerR1:      200000,
			DividerR2:      10000,
			CurrentPerVolt: 10.0,
		},
		Mock: MockConfig{
			ConversionTime: 0,
			BatteryVoltage: 12.8,
			Substrings: []Substring{
				{Cells: 20, Irradiance: 1.0},
				{Cells: 20, Irradiance: 1.0},
				{Cells: 20, Irradiance: 1.0},
			},
			NoiseCounts: 0,
			Seed:        1,
		},
		Log: LogConfig{
			Level: "info",
			Every: 50,
		},
	}
	cfg.Control = coarseProfile()
	return cfg
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values. When the file names a profile,
// the profile's control values are used as the base that the file overrides.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var head struct {
		Profile string `yaml:"profile"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if head.Profile != "" {
		if err := cfg.UseProfile(head.Profile); err != nil {
			return nil, err
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// UseProfile replaces the control section with the named tuning profile.
func (c *Config) UseProfile(name string) error {
	ctl, err := Profile(name)
	if err != nil {
		return err
	}
	c.Profile = name
	c.Control = ctl
	return nil
}

// Validate checks that the configuration describes a usable controller.
func (c *Config) Validate() error {
	ctl := c.Control
	switch {
	case ctl.PWMPeriod <= 0:
		return fmt.Errorf("control.pwm_period must be positive, got %d", ctl.PWMPeriod)
	case ctl.DutyMax > ctl.PWMPeriod:
		return fmt.Errorf("control.duty_max %d exceeds pwm_period %d", ctl.DutyMax, ctl.PWMPeriod)
	case ctl.DutyMin < 0 || ctl.DutyMin > ctl.DutyMax:
		return fmt.Errorf("control.duty_min %d outside [0, %d]", ctl.DutyMin, ctl.DutyMax)
	case ctl.DutyFloor < 0 || ctl.DutyFloor > ctl.DutyMax:
		return fmt.Errorf("control.duty_floor %d outside [0, %d]", ctl.DutyFloor, ctl.DutyMax)
	case ctl.Step <= 0:
		return fmt.Errorf("control.step must be positive, got %d", ctl.Step)
	case ctl.SweepStep <= 0:
		return fmt.Errorf("control.sweep_step must be positive, got %d", ctl.SweepStep)
	case ctl.SweepStart < ctl.DutyMin || ctl.SweepStart > ctl.DutyMax:
		return fmt.Errorf("control.sweep_start %d outside [%d, %d]", ctl.SweepStart, ctl.DutyMin, ctl.DutyMax)
	case ctl.SweepTime <= 0:
		return fmt.Errorf("control.sweep_time must be positive, got %d", ctl.SweepTime)
	case ctl.SettleDelay < 0 || ctl.CycleDelay < 0:
		return fmt.Errorf("control delays must not be negative")
	}

	n := c.Acquisition.SamplesPerChannel
	if n <= 0 || n&(n-1) != 0 {
		return fmt.Errorf("acquisition.samples_per_channel must be a power of two, got %d", n)
	}
	if c.Acquisition.Timeout < 0 {
		return fmt.Errorf("acquisition.timeout must not be negative")
	}

	inv := c.Inverter
	if inv.FullPeriod <= 0 {
		return fmt.Errorf("inverter.full_period must be positive, got %d", inv.FullPeriod)
	}
	if inv.DeadWidth <= 0 || inv.DeadWidth >= inv.FullPeriod {
		return fmt.Errorf("inverter.dead_width %d outside (0, %d)", inv.DeadWidth, inv.FullPeriod)
	}
	if inv.Tick <= 0 {
		return fmt.Errorf("inverter.tick must be positive, got %v", inv.Tick)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Profile == "" {
		c.Profile = def.Profile
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Acquisition.SamplesPerChannel == 0 {
		c.Acquisition.SamplesPerChannel = def.Acquisition.SamplesPerChannel
	}

	if c.Inverter.FullPeriod == 0 {
		c.Inverter.FullPeriod = def.Inverter.FullPeriod
	}
	if c.Inverter.DeadWidth == 0 {
		c.Inverter.DeadWidth = def.Inverter.DeadWidth
	}
	if c.Inverter.Tick == 0 {
		c.Inverter.Tick = def.Inverter.Tick
	}

	if c.Calibration.VRef == 0 {
		c.Calibration.VRef = def.Calibration.VRef
	}
	if c.Calibration.Resolution == 0 {
		c.Calibration.Resolution = def.Calibration.Resolution
	}
	if c.Calibration.DividerR2 == 0 {
		c.Calibration.DividerR1 = def.Calibration.DividerR1
		c.Calibration.DividerR2 = def.Calibration.DividerR2
	}
	if c.Calibration.CurrentPerVolt == 0 {
		c.Calibration.CurrentPerVolt = def.Calibration.CurrentPerVolt
	}

	if c.Mock.BatteryVoltage == 0 {
		c.Mock.BatteryVoltage = def.Mock.BatteryVoltage
	}
	if len(c.Mock.Substrings) == 0 {
		c.Mock.Substrings = def.Mock.Substrings
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}
