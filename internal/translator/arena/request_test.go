package arena

import (
	"testing"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

func TestBuildEvaluationPayloadShape(t *testing.T) {
	payload, evalID := BuildEvaluationPayload(PayloadParams{
		ModelID:  "upstream-gpt-4o",
		Prompt:   "hello",
		Modality: "chat",
		UserID:   "user-1",
		V3Token:  "v3-token-value",
	})

	body := gjson.ParseBytes(payload)
	if got := body.Get("id").String(); got != evalID {
		t.Fatalf("id = %q, want eval id %q", got, evalID)
	}
	if got := body.Get("mode").String(); got != "direct" {
		t.Fatalf("mode = %q, want direct", got)
	}
	if got := body.Get("modelAId").String(); got != "upstream-gpt-4o" {
		t.Fatalf("modelAId = %q", got)
	}
	if got := body.Get("userMessage.content").String(); got != "hello" {
		t.Fatalf("userMessage.content = %q", got)
	}
	if !body.Get("userMessage.experimental_attachments").IsArray() {
		t.Fatal("experimental_attachments missing or not an array")
	}
	if !body.Get("userMessage.metadata").IsObject() {
		t.Fatal("metadata missing or not an object")
	}
	if got := body.Get("modality").String(); got != "chat" {
		t.Fatalf("modality = %q, want chat", got)
	}
	if got := body.Get("userId").String(); got != "user-1" {
		t.Fatalf("userId = %q", got)
	}
	if got := body.Get("recaptchaV3Token").String(); got != "v3-token-value" {
		t.Fatalf("recaptchaV3Token = %q", got)
	}
	if body.Get("recaptchaV2Token").Exists() {
		t.Fatal("recaptchaV2Token present on a v3 request")
	}

	for _, field := range []string{"id", "userMessageId", "modelAMessageId"} {
		id, err := uuid.Parse(body.Get(field).String())
		if err != nil {
			t.Fatalf("%s is not a uuid: %v", field, err)
		}
		if id.Version() != 7 {
			t.Fatalf("%s version = %d, want 7", field, id.Version())
		}
	}
}

func TestBuildEvaluationPayloadV2Precedence(t *testing.T) {
	payload, _ := BuildEvaluationPayload(PayloadParams{
		ModelID:  "m",
		Prompt:   "p",
		Modality: "image",
		V3Token:  "v3-token-value",
		V2Token:  "v2-token-value",
	})

	body := gjson.ParseBytes(payload)
	if got := body.Get("recaptchaV2Token").String(); got != "v2-token-value" {
		t.Fatalf("recaptchaV2Token = %q", got)
	}
	v3 := body.Get("recaptchaV3Token")
	if !v3.Exists() || v3.Type != gjson.Null {
		t.Fatalf("recaptchaV3Token = %v, want explicit null alongside v2", v3)
	}
	if got := body.Get("modality").String(); got != "image" {
		t.Fatalf("modality = %q, want image", got)
	}
}

func TestBuildEvaluationPayloadOmitsOptionalFields(t *testing.T) {
	payload, _ := BuildEvaluationPayload(PayloadParams{ModelID: "m", Prompt: "p"})

	body := gjson.ParseBytes(payload)
	for _, field := range []string{"userId", "recaptchaV2Token", "recaptchaV3Token"} {
		if body.Get(field).Exists() {
			t.Fatalf("%s present on a minimal request", field)
		}
	}
	if got := body.Get("modality").String(); got != "chat" {
		t.Fatalf("modality = %q, want default chat", got)
	}
}

func TestBuildEvaluationPayloadUniqueIDs(t *testing.T) {
	payload, _ := BuildEvaluationPayload(PayloadParams{ModelID: "m", Prompt: "p"})
	body := gjson.ParseBytes(payload)

	ids := map[string]struct{}{
		body.Get("id").String():              {},
		body.Get("userMessageId").String():   {},
		body.Get("modelAMessageId").String(): {},
	}
	if len(ids) != 3 {
		t.Fatalf("evaluation ids collide: %v", ids)
	}
}
