package helper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// ModelDir returns the directory models are downloaded to.
// It defaults to ./models and can be changed with FACTUAL_MODELS_DIR.
func ModelDir() string {
	if dir := os.Getenv("FACTUAL_MODELS_DIR"); dir != "" {
		return dir
	}
	return "./models"
}

// PrepareModel downloads the model if it doesn't exist and returns the model path.
// The model name is sanitized into a directory name by replacing slashes with underscores.
// onnxFilePath selects a specific onnx file inside the model repository, empty uses the default.
func PrepareModel(modelName string, onnxFilePath string) (string, error) {
	modelDir := ModelDir()
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))

	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat model directory: %w", err)
	}

	if err := os.MkdirAll(modelDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}

	downloadOptions := hugot.NewDownloadOptions()
	if onnxFilePath != "" {
		downloadOptions.OnnxFilePath = onnxFilePath
	}
	downloadedPath, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}

	return downloadedPath, nil
}
