package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/viant/toolbox"
	"github.com/viant/vigil/risk"
)

// Type is the strategy type handled by Executor.
const Type = "command"

const (
	defaultTimeout      = time.Minute
	defaultPollInterval = time.Second
	localhost           = "localhost"
)

// Settings is the decoded strategy config.
type Settings struct {
	Command      string
	Host         string
	Credentials  string
	Env          map[string]string
	Title        string
	RiskLevel    risk.Level
	Gated        bool
	Timeout      time.Duration
	PollInterval time.Duration
}

// ParseSettings decodes a strategy config map.
//
// Recognised keys: command (required), host, credentials, env, title,
// riskLevel, timeoutMs, pollIntervalMs.
func ParseSettings(config map[string]interface{}) (*Settings, error) {
	ret := &Settings{
		Host:         localhost,
		Timeout:      defaultTimeout,
		PollInterval: defaultPollInterval,
	}
	ret.Command = strings.TrimSpace(toolbox.AsString(config["command"]))
	if ret.Command == "" || config["command"] == nil {
		return nil, fmt.Errorf("command strategy config: command was empty")
	}
	if v, ok := config["host"]; ok && v != nil {
		ret.Host = toolbox.AsString(v)
	}
	if v, ok := config["credentials"]; ok && v != nil {
		ret.Credentials = toolbox.AsString(v)
	}
	if v, ok := config["title"]; ok && v != nil {
		ret.Title = toolbox.AsString(v)
	}
	if v, ok := config["riskLevel"]; ok && v != nil {
		level, err := risk.ParseLevel(toolbox.AsString(v))
		if err != nil {
			return nil, fmt.Errorf("command strategy config: %w", err)
		}
		ret.RiskLevel = level
		ret.Gated = level.Valid()
	}
	if v, ok := config["timeoutMs"]; ok && v != nil {
		if ms := toolbox.AsInt(v); ms > 0 {
			ret.Timeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v, ok := config["pollIntervalMs"]; ok && v != nil {
		if ms := toolbox.AsInt(v); ms > 0 {
			ret.PollInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if env, ok := config["env"].(map[string]interface{}); ok {
		ret.Env = make(map[string]string, len(env))
		for k, v := range env {
			ret.Env[k] = toolbox.AsString(v)
		}
	}
	return ret, nil
}

// Metrics extracts revenue=<n> and cost=<n> lines from command output.
// Later lines win.
func Metrics(stdout string) (revenue, cost float64) {
	for _, line := range strings.Split(stdout, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "revenue":
			revenue = toolbox.AsFloat(strings.TrimSpace(value))
		case "cost":
			cost = toolbox.AsFloat(strings.TrimSpace(value))
		}
	}
	return revenue, cost
}
