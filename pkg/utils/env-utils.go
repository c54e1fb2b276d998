package utils

import (
	"regexp"
	"strings"
)

var nonAlphaNumeric = regexp.MustCompile(`[^A-Z0-9]+`)

// GenerateEnvVarName generates a standardized environment variable name from a given string.
// It converts the input to uppercase and replaces any non-alphanumeric characters with underscores.
// Leading and trailing underscores are removed.
func GenerateEnvVarName(input string) string {
	normalized := strings.ToUpper(input)
	normalized = nonAlphaNumeric.ReplaceAllString(normalized, "_")
	return strings.Trim(normalized, "_")
}

// GenerateProviderClientSecretEnvVarName generates the environment variable name holding the
// OAuth client secret of a data provider. Format: DATA_PROVIDER_CLIENT_SECRET_FOR_{NORMALIZED_NAME}
func GenerateProviderClientSecretEnvVarName(providerName string) string {
	return "DATA_PROVIDER_CLIENT_SECRET_FOR_" + GenerateEnvVarName(providerName)
}

// GenerateSurveyPlatformTokenEnvVarName generates the environment variable name holding the API
// token for one survey platform account. Format: SURVEY_PLATFORM_API_TOKEN_FOR_{NORMALIZED_NAME}
func GenerateSurveyPlatformTokenEnvVarName(accountName string) string {
	return "SURVEY_PLATFORM_API_TOKEN_FOR_" + GenerateEnvVarName(accountName)
}
