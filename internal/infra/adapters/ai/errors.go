package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/openai/openai-go/v2"
	"google.golang.org/genai"

	"bedrock-chatbot/internal/domain"
)

// classify wraps a provider error with its domain class, keeping the cause:
// "bedrock: model endpoint unavailable: <sdk error>".
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if isClassified(err) {
		return err
	}
	if class := classOf(err); class != nil {
		return fmt.Errorf("%s: %w: %w", provider, class, err)
	}
	return fmt.Errorf("%s: %w", provider, err)
}

func isClassified(err error) bool {
	return errors.Is(err, domain.ErrAuthentication) ||
		errors.Is(err, domain.ErrServiceUnavailable) ||
		errors.Is(err, domain.ErrRequestTimeout)
}

// errorClass is the metrics label of a classified error.
func errorClass(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuthentication):
		return "auth"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrRequestTimeout):
		return "timeout"
	default:
		return "other"
	}
}

func classOf(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrRequestTimeout
	}

	// Bedrock: modeled exceptions carry a code.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if c := classOfCode(apiErr.ErrorCode()); c != nil {
			return c
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		if c := classOfStatus(respErr.HTTPStatusCode()); c != nil {
			return c
		}
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		if c := classOfStatus(oaErr.StatusCode); c != nil {
			return c
		}
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		if c := classOfStatus(gErr.Code); c != nil {
			return c
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.ErrRequestTimeout
		}
		return domain.ErrServiceUnavailable
	}
	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return domain.ErrServiceUnavailable
	}
	return nil
}

func classOfCode(code string) error {
	switch code {
	case "AccessDeniedException", "UnrecognizedClientException", "InvalidSignatureException",
		"ExpiredTokenException", "MissingAuthenticationTokenException", "IncompleteSignature":
		return domain.ErrAuthentication
	case "ModelTimeoutException":
		return domain.ErrRequestTimeout
	case "ServiceUnavailableException", "ThrottlingException", "InternalServerException",
		"ModelNotReadyException":
		return domain.ErrServiceUnavailable
	}
	return nil
}

func classOfStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrAuthentication
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return domain.ErrRequestTimeout
	case status == http.StatusTooManyRequests || status >= 500:
		return domain.ErrServiceUnavailable
	}
	return nil
}
