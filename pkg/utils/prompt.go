package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"github.com/Krayangel/ARSW-LAB03/pkg/simulation"
)

// EnvPrefix prefixes the variables that override parameter defaults.
const EnvPrefix = "IMMORTALS_"

// SkipPromptsEnv disables prompting when set to "true" (CI, scripts).
const SkipPromptsEnv = EnvPrefix + "SKIP_PROMPTS"

// PromptForParameters prompts the user for simulation parameters. Values in
// defaults replace the descriptor defaults.
func PromptForParameters(params []simulation.Parameter, defaults map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{})

	for _, param := range params {
		if v, ok := defaults[param.Name]; ok {
			param.Default = v
		}
		value, err := promptForParameter(param)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", param.Name, err)
		}
		result[param.Name] = value
	}

	return result, nil
}

// promptForParameter prompts for a single parameter
func promptForParameter(param simulation.Parameter) (interface{}, error) {
	envKey := EnvPrefix + strings.ToUpper(param.Name)

	// Check if we should skip prompts entirely (for CI/automation)
	if os.Getenv(SkipPromptsEnv) == "true" {
		if envValue := os.Getenv(envKey); envValue != "" {
			return parseEnvValue(envValue, param)
		}
		if param.Default != nil {
			return param.Default, nil
		}
		if param.Required {
			return nil, fmt.Errorf("required parameter %s not provided and no default available", param.Name)
		}
		return nil, nil
	}

	// Check for environment variable to use as default
	if envValue := os.Getenv(envKey); envValue != "" {
		parsed, err := parseEnvValue(envValue, param)
		if err == nil {
			param.Default = parsed
		}
	}

	switch param.Type {
	case "integer":
		return promptInteger(param)
	case "string":
		return promptString(param)
	case "boolean":
		return promptBoolean(param)
	case "duration":
		return promptDuration(param)
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", param.Type)
	}
}

// parseEnvValue parses an environment variable value according to the parameter type
func parseEnvValue(value string, param simulation.Parameter) (interface{}, error) {
	switch param.Type {
	case "integer":
		return strconv.Atoi(value)
	case "string":
		return value, nil
	case "boolean":
		return strconv.ParseBool(value)
	case "duration":
		duration, err := time.ParseDuration(value)
		if err != nil {
			return nil, err
		}
		return duration, nil
	default:
		return nil, fmt.Errorf("unsupported parameter type: %s", param.Type)
	}
}

func promptInteger(param simulation.Parameter) (int, error) {
	defaultStr := ""
	if param.Default != nil {
		if v, ok := toIntOK(param.Default); ok {
			defaultStr = strconv.Itoa(v)
		}
	}

	prompt := &survey.Input{
		Message: param.Description,
		Default: defaultStr,
	}

	var result string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.Required)); err != nil {
		return 0, err
	}

	value, err := strconv.Atoi(strings.TrimSpace(result))
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}

	if err := CheckIntRange(param, value); err != nil {
		return 0, err
	}
	return value, nil
}

// CheckIntRange validates value against the parameter's min and max.
func CheckIntRange(param simulation.Parameter, value int) error {
	if param.Min != nil {
		if minRange := toInt(param.Min); value < minRange {
			return fmt.Errorf("value must be at least %d", minRange)
		}
	}
	if param.Max != nil {
		if maxRange := toInt(param.Max); value > maxRange {
			return fmt.Errorf("value must be at most %d", maxRange)
		}
	}
	return nil
}

func promptString(param simulation.Parameter) (string, error) {
	defaultStr := ""
	if param.Default != nil {
		defaultStr = fmt.Sprintf("%v", param.Default)
	}

	// If options are provided, use a select prompt
	if len(param.Options) > 0 {
		prompt := &survey.Select{
			Message: param.Description,
			Options: param.Options,
			Default: defaultStr,
		}

		var result string
		if err := survey.AskOne(prompt, &result); err != nil {
			return "", err
		}
		return result, nil
	}

	// Otherwise use input prompt
	prompt := &survey.Input{
		Message: param.Description,
		Default: defaultStr,
	}

	var result string
	var validators []survey.Validator
	if param.Required {
		validators = append(validators, survey.Required)
	}

	if err := survey.AskOne(prompt, &result, survey.WithValidator(survey.ComposeValidators(validators...))); err != nil {
		return "", err
	}

	return result, nil
}

func promptBoolean(param simulation.Parameter) (bool, error) {
	defaultBool := false
	if param.Default != nil {
		switch v := param.Default.(type) {
		case bool:
			defaultBool = v
		case string:
			defaultBool = v == "true" || v == "yes" || v == "1"
		}
	}

	prompt := &survey.Confirm{
		Message: param.Description,
		Default: defaultBool,
	}

	var result bool
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}

	return result, nil
}

func promptDuration(param simulation.Parameter) (time.Duration, error) {
	defaultStr := ""
	if param.Default != nil {
		defaultStr = fmt.Sprintf("%v", param.Default)
	}

	prompt := &survey.Input{
		Message: param.Description + " (e.g., 10s, 1m30s, 500ms)",
		Default: defaultStr,
	}

	var result string
	if err := survey.AskOne(prompt, &result, survey.WithValidator(func(val interface{}) error {
		str := val.(string)
		_, err := time.ParseDuration(str)
		if err != nil {
			return fmt.Errorf("invalid duration format (use formats like 10s, 1m30s, 500ms)")
		}
		return nil
	})); err != nil {
		return 0, err
	}

	duration, err := time.ParseDuration(result)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return duration, nil
}

// Helper functions
func toIntOK(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	default:
		return 0, false
	}
}

func toInt(v interface{}) int {
	switch val := v.(type) {
	case int:
		return val
	case float64:
		return int(val)
	case string:
		i, _ := strconv.Atoi(val)
		return i
	default:
		return 0
	}
}
