package shared

import (
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	. "github.com/PelionIoT/tokenring/cluster"
	. "github.com/PelionIoT/tokenring/logging"
	. "github.com/PelionIoT/tokenring/node"
	. "github.com/PelionIoT/tokenring/ring"
)

const (
	DefaultHost                 = "localhost"
	DefaultPort                 = 8080
	DefaultTransferDelay        = 1000
	DefaultHistoryPurgeInterval = 60000
	DefaultHistoryEventLimit    = 10000
	MinimumHistoryPurgeInterval = 1000
)

// All durations are in milliseconds
type YAMLRingConfig struct {
	Host                    string         `yaml:"host"`
	Port                    int            `yaml:"port"`
	MaxNodes                int            `yaml:"maxNodes"`
	InitialNodes            int            `yaml:"initialNodes"`
	ThinkTime               *YAMLThinkTime `yaml:"thinkTime"`
	RequestProbability      *float64       `yaml:"requestProbability"`
	CriticalSectionDuration *uint64        `yaml:"criticalSectionDuration"`
	TransferDelay           *uint64        `yaml:"transferDelay"`
	LogLevel                string         `yaml:"logLevel"`
	History                 *YAMLHistory   `yaml:"history"`
}

type YAMLThinkTime struct {
	Min uint64 `yaml:"min"`
	Max uint64 `yaml:"max"`
}

type YAMLHistory struct {
	DBFile        string `yaml:"db"`
	EventLimit    uint64 `yaml:"eventLimit"`
	PurgeInterval uint64 `yaml:"purgeInterval"`
}

func (yrc *YAMLRingConfig) LoadFromFile(file string) error {
	rawConfig, err := ioutil.ReadFile(file)

	if err != nil {
		return err
	}

	err = yaml.Unmarshal(rawConfig, yrc)

	if err != nil {
		return err
	}

	if err := yrc.Validate(); err != nil {
		return err
	}

	if yrc.History.DBFile != "" {
		yrc.History.DBFile = resolveFilePath(file, yrc.History.DBFile)
	}

	SetLoggingLevel(yrc.LogLevel)

	return nil
}

// Validate checks field ranges and fills in defaults for anything left out
func (yrc *YAMLRingConfig) Validate() error {
	if yrc.Host == "" {
		yrc.Host = DefaultHost
	}

	if yrc.Port == 0 {
		yrc.Port = DefaultPort
	}

	if !isValidPort(yrc.Port) {
		return errors.New(fmt.Sprintf("%d is an invalid port for the ring server", yrc.Port))
	}

	if yrc.MaxNodes == 0 {
		yrc.MaxNodes = DefaultMaxNodes
	}

	if yrc.MaxNodes < 1 {
		return errors.New("maxNodes must be at least 1")
	}

	if yrc.InitialNodes < 0 || yrc.InitialNodes > yrc.MaxNodes {
		return errors.New(fmt.Sprintf("initialNodes must be between 0 and maxNodes (%d) inclusive", yrc.MaxNodes))
	}

	if yrc.ThinkTime == nil {
		yrc.ThinkTime = &YAMLThinkTime{
			Min: uint64(DefaultThinkTimeMin / time.Millisecond),
			Max: uint64(DefaultThinkTimeMax / time.Millisecond),
		}
	}

	if yrc.ThinkTime.Min == 0 {
		return errors.New("thinkTime.min must be positive")
	}

	if yrc.ThinkTime.Min > yrc.ThinkTime.Max {
		return errors.New("thinkTime.min must not be greater than thinkTime.max")
	}

	if yrc.RequestProbability == nil {
		probability := DefaultRequestProbability
		yrc.RequestProbability = &probability
	}

	if *yrc.RequestProbability < 0 || *yrc.RequestProbability > 1 {
		return errors.New("requestProbability must be between 0 and 1 inclusive")
	}

	if yrc.CriticalSectionDuration == nil {
		duration := uint64(DefaultCriticalSectionDuration / time.Millisecond)
		yrc.CriticalSectionDuration = &duration
	}

	if yrc.TransferDelay == nil {
		delay := uint64(DefaultTransferDelay)
		yrc.TransferDelay = &delay
	}

	if yrc.LogLevel != "" && !LogLevelIsValid(yrc.LogLevel) {
		return errors.New(fmt.Sprintf("%s is not a valid log level", yrc.LogLevel))
	}

	if yrc.History == nil {
		yrc.History = &YAMLHistory{EventLimit: DefaultHistoryEventLimit}
	}

	if yrc.History.PurgeInterval == 0 {
		yrc.History.PurgeInterval = DefaultHistoryPurgeInterval
	}

	if yrc.History.PurgeInterval < MinimumHistoryPurgeInterval {
		return errors.New(fmt.Sprintf("history.purgeInterval must be at least %d", MinimumHistoryPurgeInterval))
	}

	return nil
}

func (yrc *YAMLRingConfig) AgentConfig() AgentConfig {
	return AgentConfig{
		ThinkTimeMin:            milliseconds(yrc.ThinkTime.Min),
		ThinkTimeMax:            milliseconds(yrc.ThinkTime.Max),
		RequestProbability:      *yrc.RequestProbability,
		CriticalSectionDuration: milliseconds(*yrc.CriticalSectionDuration),
	}
}

func (yrc *YAMLRingConfig) RingControllerConfig() RingControllerConfig {
	return RingControllerConfig{
		MaxNodes:      yrc.MaxNodes,
		Agent:         yrc.AgentConfig(),
		TransferDelay: milliseconds(*yrc.TransferDelay),
	}
}

func milliseconds(ms uint64) time.Duration {
	return time.Millisecond * time.Duration(ms)
}

func isValidPort(p int) bool {
	return p >= 0 && p < (1<<16)
}

func resolveFilePath(configFileLocation, file string) string {
	if filepath.IsAbs(file) {
		return file
	}

	return filepath.Join(filepath.Dir(configFileLocation), file)
}
