package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	jsonrepair "github.com/kaptinlin/jsonrepair"

	"github.com/nimbium/cirro/pkg/types"
)

// calculateProgressiveTimeout returns a timeout duration that increases with each attempt.
// Starts at 90s, increases by 45s per attempt, with ±20% jitter.
// Examples: attempt 0: 72-108s, attempt 1: 108-162s, attempt 2: 144-216s
func calculateProgressiveTimeout(attempt int) time.Duration {
	baseTimeout := time.Duration(90+attempt*45) * time.Second

	jitterPercent := 0.2
	jitterRange := float64(baseTimeout) * jitterPercent
	jitter := time.Duration(rand.Float64()*jitterRange*2 - jitterRange)

	timeout := baseTimeout + jitter
	if timeout < 30*time.Second {
		timeout = 30 * time.Second
	}
	return timeout
}

var thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// RemoveThinkTags removes <think> tags and everything in between them from a string.
// Reasoning models leak these into the content stream on some serving stacks.
func RemoveThinkTags(input string) string {
	return thinkTagPattern.ReplaceAllString(input, "")
}

func isValidJSON(s string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(s), &js) == nil
}

// AppendOverlap appends s2 to s1, removing any overlapping part.
// It finds the longest suffix of s1 that is also a prefix of s2 and
// combines them to avoid duplicating the overlapping section.
func AppendOverlap(s1, s2 string) string {
	len1 := len(s1)
	len2 := len(s2)

	maxOverlap := len1
	if len2 < len1 {
		maxOverlap = len2
	}

	// Iterate backwards from the longest possible overlap.
	// The first match found will be the longest one.
	for i := maxOverlap; i > 0; i-- {
		if s1[len1-i:] == s2[:i] {
			return s1 + s2[i:]
		}
	}

	return s1 + s2
}

func truncateToLastCloseBrace(s string) string {
	lastIndex := strings.LastIndex(s, "}")
	if lastIndex == -1 {
		return ""
	}
	return s[:lastIndex+1]
}

// GenerateJSONResponseWithContinuation makes repeated LLM calls with continuation
// prompts until valid JSON is received or max retries is reached.
func GenerateJSONResponseWithContinuation(
	ctx context.Context,
	llmClient Client,
	systemPrompt string,
	userPrompt string,
	targetStruct any,
	maxRetries int,
) (string, error) {
	messages := []types.Message{
		NewSystemMessage(systemPrompt),
		NewUserMessage(userPrompt),
	}

	return GenerateJSONResponseWithContinuationMessages(ctx, llmClient, messages, targetStruct, maxRetries)
}

// GenerateJSONResponseWithContinuationMessages makes repeated LLM calls with
// continuation prompts until valid JSON is received or max retries is reached.
// This version accepts pre-built messages. Partial replies are stitched together
// with AppendOverlap, so a model resending the tail of its previous output does
// not corrupt the accumulated JSON.
//
// Returns the final JSON string (possibly repaired) and an error when no valid
// JSON could be produced within the retry budget.
func GenerateJSONResponseWithContinuationMessages(
	ctx context.Context,
	llmClient Client,
	messages []types.Message,
	targetStruct any,
	maxRetries int,
) (string, error) {
	if maxRetries <= 0 {
		maxRetries = 8
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages provided")
	}

	workingMessages := make([]types.Message, len(messages))
	copy(workingMessages, messages)
	userIdx := len(messages) - 1

	var accumulatedResponse string
	var lastError error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			workingMessages[userIdx].Content = messages[userIdx].Content +
				"\nFinish your work:\n" + strings.TrimSpace(accumulatedResponse)
		}

		timeout := calculateProgressiveTimeout(attempt)
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		response, err := llmClient.Chat(attemptCtx, workingMessages)
		cancel()

		if err != nil {
			lastError = fmt.Errorf("LLM call failed on attempt %d: %w", attempt+1, err)
			continue
		}
		if response == nil || response.Content == "" {
			lastError = fmt.Errorf("empty response from LLM on attempt %d", attempt+1)
			continue
		}

		startLen := len(accumulatedResponse)
		accumulatedResponse = AppendOverlap(strings.TrimSpace(accumulatedResponse), strings.TrimSpace(response.Content))
		gap := len(accumulatedResponse) - startLen

		cleanJSON := RemoveThinkTags(accumulatedResponse)
		if isValidJSON(cleanJSON) {
			if targetStruct != nil {
				if err := json.Unmarshal([]byte(cleanJSON), targetStruct); err != nil {
					return cleanJSON, fmt.Errorf("valid JSON did not match target schema: %w", err)
				}
			}
			return cleanJSON, nil
		}

		// The model added nothing new on a continuation attempt, so more calls
		// will not complete the document. Salvage what is there.
		if attempt > 1 && gap == 0 {
			accumulatedResponse = truncateToLastCloseBrace(accumulatedResponse)
			repaired, repairErr := jsonrepair.JSONRepair(RemoveThinkTags(accumulatedResponse))
			if repairErr == nil && isValidJSON(repaired) {
				if targetStruct != nil {
					if err := json.Unmarshal([]byte(repaired), targetStruct); err != nil {
						return repaired, fmt.Errorf("repaired JSON did not match target schema: %w", err)
					}
				}
				return repaired, nil
			}
			return accumulatedResponse, fmt.Errorf("response stalled without producing valid JSON after %d attempts", attempt+1)
		}
	}

	if lastError != nil {
		accumulatedResponse = truncateToLastCloseBrace(accumulatedResponse)
		repaired, _ := jsonrepair.JSONRepair(RemoveThinkTags(accumulatedResponse))
		return repaired, fmt.Errorf("failed after %d attempts: %w", maxRetries+1, lastError)
	}

	return RemoveThinkTags(accumulatedResponse), fmt.Errorf("failed to generate valid JSON after %d attempts", maxRetries+1)
}

// GenerateJSONWithContinuation is a simpler version that doesn't validate against
// a struct and just ensures valid JSON is returned.
func GenerateJSONWithContinuation(
	ctx context.Context,
	llmClient Client,
	systemPrompt string,
	userPrompt string,
	maxRetries int,
) (string, error) {
	if maxRetries <= 0 {
		maxRetries = 8
	}

	messages := []types.Message{
		NewSystemMessage(systemPrompt),
		NewUserMessage(userPrompt),
	}

	var accumulatedResponse string
	var lastError error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		timeout := calculateProgressiveTimeout(attempt)
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		response, err := llmClient.Chat(attemptCtx, messages)
		cancel()
		if err != nil {
			lastError = fmt.Errorf("LLM call failed on attempt %d: %w", attempt+1, err)
			continue
		}

		if response == nil || response.Content == "" {
			lastError = fmt.Errorf("empty response from LLM on attempt %d", attempt+1)
			continue
		}

		if attempt == 0 {
			accumulatedResponse = strings.TrimSpace(response.Content)
		} else {
			accumulatedResponse += strings.TrimSpace(response.Content)
		}

		repairedJSON, _ := jsonrepair.JSONRepair(accumulatedResponse)

		var testJSON any
		if err := json.Unmarshal([]byte(repairedJSON), &testJSON); err != nil {
			lastError = fmt.Errorf("invalid JSON on attempt %d: %w", attempt+1, err)

			if attempt < maxRetries {
				messages = append(messages, NewAssistantMessage(accumulatedResponse))
				messages = append(messages, NewUserMessage(
					"The JSON response was incomplete or invalid. Please continue from where you left off and complete the JSON:"))
			}
			continue
		}

		return repairedJSON, nil
	}

	if lastError != nil {
		return accumulatedResponse, fmt.Errorf("failed after %d attempts: %w", maxRetries+1, lastError)
	}

	return accumulatedResponse, fmt.Errorf("failed to generate valid JSON after %d attempts", maxRetries+1)
}

// schemaInstruction renders the user turn that asks for JSON matching
// schema. Clients without a native structured output mode append it to
// the conversation and clean the reply with ExtractJSONFromResponse.
func schemaInstruction(schema any) (types.Message, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return types.Message{}, fmt.Errorf("failed to encode schema: %w", err)
	}
	return NewUserMessage("Respond only with valid JSON matching this schema: " + string(schemaJSON)), nil
}

// ExtractJSONFromResponse attempts to extract JSON from LLM responses that may
// contain markdown code blocks or other surrounding text.
func ExtractJSONFromResponse(response string) string {
	response = strings.TrimSpace(response)

	// Check for ```json ... ``` pattern
	if strings.Contains(response, "```json") {
		start := strings.Index(response, "```json")
		end := strings.Index(response[start+7:], "```")
		if end != -1 {
			return strings.TrimSpace(response[start+7 : start+7+end])
		}
	}

	// Check for ``` ... ``` pattern
	if strings.HasPrefix(response, "```") {
		lines := strings.Split(response, "\n")
		if len(lines) > 2 {
			return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
		}
	}

	// Try to find JSON object boundaries
	jsonStart := strings.Index(response, "{")
	jsonEnd := strings.LastIndex(response, "}")
	if jsonStart != -1 && jsonEnd != -1 && jsonEnd > jsonStart {
		return response[jsonStart : jsonEnd+1]
	}

	// Try to find JSON array boundaries
	jsonStart = strings.Index(response, "[")
	jsonEnd = strings.LastIndex(response, "]")
	if jsonStart != -1 && jsonEnd != -1 && jsonEnd > jsonStart {
		return response[jsonStart : jsonEnd+1]
	}

	return response
}
