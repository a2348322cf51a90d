package issuance

import (
	"encoding/json"
	"fmt"
	"strings"
)

const createIssuanceQuery = `mutation createIssuanceMutation($input: CreateIssuanceInput!) {
  createIssuance(input: $input) {
    issuance {
      uid
      code {
        code
        endDate
        __typename
      }
      __typename
    }
    __typename
  }
}`

type mutationRequest struct {
	OperationName string            `json:"operationName"`
	Variables     mutationVariables `json:"variables"`
	Query         string            `json:"query"`
}

type mutationVariables struct {
	Input mutationInput `json:"input"`
}

type mutationInput struct {
	OfferUID string `json:"offerUid"`
}

func newMutationRequest(offerID string) mutationRequest {
	return mutationRequest{
		OperationName: "createIssuanceMutation",
		Variables:     mutationVariables{Input: mutationInput{OfferUID: offerID}},
		Query:         createIssuanceQuery,
	}
}

type issuanceResponse struct {
	Data   *issuanceData   `json:"data"`
	Errors []responseError `json:"errors"`
}

type issuanceData struct {
	CreateIssuance *struct {
		Issuance *struct {
			Code *struct {
				Code *string `json:"code"`
			} `json:"code"`
		} `json:"issuance"`
	} `json:"createIssuance"`
}

type responseError struct {
	Message string `json:"message"`
}

// parseCode validates the response at the boundary: either a non-empty
// issuance.code.code or a ParseError naming the first missing level.
func parseCode(body []byte) (string, error) {
	var resp issuanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &ParseError{Field: "body", Cause: err}
	}

	if resp.Data == nil {
		return "", &ParseError{Field: "data", Cause: upstreamErrors(resp.Errors)}
	}
	if resp.Data.CreateIssuance == nil {
		return "", &ParseError{Field: "data.createIssuance", Cause: upstreamErrors(resp.Errors)}
	}
	if resp.Data.CreateIssuance.Issuance == nil {
		return "", &ParseError{Field: "data.createIssuance.issuance", Cause: upstreamErrors(resp.Errors)}
	}
	if resp.Data.CreateIssuance.Issuance.Code == nil {
		return "", &ParseError{Field: "data.createIssuance.issuance.code", Cause: upstreamErrors(resp.Errors)}
	}

	codePtr := resp.Data.CreateIssuance.Issuance.Code.Code
	if codePtr == nil || strings.TrimSpace(*codePtr) == "" {
		return "", &ParseError{Field: "data.createIssuance.issuance.code.code", Cause: upstreamErrors(resp.Errors)}
	}

	return strings.TrimSpace(*codePtr), nil
}

func upstreamErrors(errs []responseError) error {
	if len(errs) == 0 {
		return nil
	}
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		if msg := strings.TrimSpace(e.Message); msg != "" {
			messages = append(messages, msg)
		}
	}
	if len(messages) == 0 {
		return nil
	}
	return fmt.Errorf("upstream errors: %s", strings.Join(messages, "; "))
}
