package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

// ImageEditor renders an edited variant of a base image. Used as an
// alternative backend for the render phase when Vertex Imagen is configured.
type ImageEditor interface {
	Edit(ctx context.Context, prompt string, base InlineImage) (InlineImage, error)
}

// VertexImagen implements ImageEditor via the Vertex AI prediction API.
type VertexImagen struct {
	projectID          string
	location           string
	model              string
	apiKey             string
	serviceAccount     string
	serviceAccountJSON string
}

// VertexImagenConfig describes how to connect to Imagen.
type VertexImagenConfig struct {
	ProjectID          string
	Location           string
	Model              string
	APIKey             string
	ServiceAccount     string
	ServiceAccountJSON string
}

// NewVertexImagen wires a VertexImagen client.
func NewVertexImagen(cfg VertexImagenConfig) *VertexImagen {
	return &VertexImagen{
		projectID:          strings.TrimSpace(cfg.ProjectID),
		location:           strings.TrimSpace(cfg.Location),
		model:              strings.TrimSpace(cfg.Model),
		apiKey:             strings.TrimSpace(cfg.APIKey),
		serviceAccount:     strings.TrimSpace(cfg.ServiceAccount),
		serviceAccountJSON: strings.TrimSpace(cfg.ServiceAccountJSON),
	}
}

// Configured reports whether the required connection fields are present.
func (v *VertexImagen) Configured() bool {
	return v != nil && v.projectID != "" && v.location != "" && v.model != ""
}

// Edit runs an Imagen edit request against the base image.
func (v *VertexImagen) Edit(ctx context.Context, prompt string, base InlineImage) (InlineImage, error) {
	if !v.Configured() {
		return InlineImage{}, fmt.Errorf("imagen: missing project/location/model")
	}
	if strings.TrimSpace(prompt) == "" {
		return InlineImage{}, fmt.Errorf("imagen: prompt is required")
	}
	if len(base.Data) == 0 {
		return InlineImage{}, fmt.Errorf("imagen: base image is required")
	}

	instance, err := structpb.NewValue(map[string]any{
		"prompt": prompt,
		"image": map[string]any{
			"bytesBase64Encoded": base64.StdEncoding.EncodeToString(base.Data),
		},
	})
	if err != nil {
		return InlineImage{}, err
	}

	params, err := structpb.NewValue(map[string]any{
		"sampleCount": 1,
		"editMode":    "inpainting-free-form",
	})
	if err != nil {
		return InlineImage{}, err
	}

	endpoint := fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", v.projectID, v.location, v.model)
	options := []option.ClientOption{option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", v.location))}
	if v.serviceAccountJSON != "" {
		options = append(options, option.WithCredentialsJSON([]byte(v.serviceAccountJSON)))
	} else if v.serviceAccount != "" {
		options = append(options, option.WithCredentialsFile(v.serviceAccount))
	} else if v.apiKey != "" {
		options = append(options, option.WithAPIKey(v.apiKey))
	}

	client, err := aiplatform.NewPredictionClient(ctx, options...)
	if err != nil {
		return InlineImage{}, fmt.Errorf("imagen: prediction client: %w", err)
	}
	defer client.Close()

	resp, err := client.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:   endpoint,
		Instances:  []*structpb.Value{instance},
		Parameters: params,
	})
	if err != nil {
		return InlineImage{}, fmt.Errorf("imagen: predict: %w", err)
	}
	if len(resp.Predictions) == 0 {
		return InlineImage{}, fmt.Errorf("imagen: empty prediction response")
	}

	field := resp.Predictions[0].GetStructValue().GetFields()["bytesBase64Encoded"]
	if field == nil {
		return InlineImage{}, fmt.Errorf("imagen: prediction missing bytes")
	}
	data, err := base64.StdEncoding.DecodeString(field.GetStringValue())
	if err != nil {
		return InlineImage{}, fmt.Errorf("imagen: decode result: %w", err)
	}
	return InlineImage{MIME: "image/png", Data: data}, nil
}
