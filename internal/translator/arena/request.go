package arena

import (
	"github.com/tidwall/sjson"
)

const evaluationTemplate = `{"id":"","mode":"direct","modelAId":"","userMessageId":"","modelAMessageId":"","userMessage":{"content":"","experimental_attachments":[],"metadata":{}},"modality":"chat"}`

// PayloadParams carries everything BuildEvaluationPayload needs. Exactly
// one of V2Token/V3Token ends up in the payload; V2 wins when both are set
// and both are omitted when neither is.
type PayloadParams struct {
	ModelID  string
	Prompt   string
	Modality string
	UserID   string
	V3Token  string
	V2Token  string
}

// BuildEvaluationPayload renders one create-evaluation request body and
// returns it with the generated evaluation id, which doubles as the chat
// completion id suffix downstream.
func BuildEvaluationPayload(params PayloadParams) ([]byte, string) {
	evalID := NewMessageID()

	payload := evaluationTemplate
	payload, _ = sjson.Set(payload, "id", evalID)
	payload, _ = sjson.Set(payload, "modelAId", params.ModelID)
	payload, _ = sjson.Set(payload, "userMessageId", NewMessageID())
	payload, _ = sjson.Set(payload, "modelAMessageId", NewMessageID())
	payload, _ = sjson.Set(payload, "userMessage.content", params.Prompt)
	if params.Modality != "" {
		payload, _ = sjson.Set(payload, "modality", params.Modality)
	}
	if params.UserID != "" {
		payload, _ = sjson.Set(payload, "userId", params.UserID)
	}
	switch {
	case params.V2Token != "":
		payload, _ = sjson.Set(payload, "recaptchaV2Token", params.V2Token)
		payload, _ = sjson.SetRaw(payload, "recaptchaV3Token", "null")
	case params.V3Token != "":
		payload, _ = sjson.Set(payload, "recaptchaV3Token", params.V3Token)
	}
	return []byte(payload), evalID
}
