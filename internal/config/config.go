package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	BackendRemote = "remote"
	BackendModel  = "model"

	CameraWebcam = "webcam"
	CameraFile   = "file"
)

type Config struct {
	Port     int
	Password string

	ImageDirectory        string
	MediaLibraryDirectory string // Empty disables the shared media library mirror
	DatabasePath          string
	LogDirectory          string

	Backend             string  // "remote" or "model"
	RemoteEndpoint      string
	ModelPath           string
	ConfigPath          string
	LabelsPath          string  // Optional YAML class id -> label map
	ConfidenceThreshold float64 // Box detections must score above this
	MaxImageDimension   int     // Downscale target before inference, 0 keeps the original size

	CameraSource      string // "webcam" or "file"
	CameraBackDevice  int
	CameraFrontDevice int
	CameraStillPath   string // Source still for the file camera
	CaptureQuality    float64
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when it exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                  getEnvAsInt("PORT", 8080),
		Password:              getEnv("PASSWORD", "objectscanner"),
		ImageDirectory:        getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		MediaLibraryDirectory: getEnv("MEDIA_LIBRARY_DIR", ""),
		DatabasePath:          getEnv("DB_PATH", filepath.Join(".", "data", "captures.db")),
		LogDirectory:          getEnv("LOG_DIR", filepath.Join(".", "logs")),
		Backend:               getEnv("IDENTIFY_BACKEND", BackendRemote),
		RemoteEndpoint:        getEnv("REMOTE_ENDPOINT", "https://vision.objectscanner.app/identify"),
		ModelPath:             getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:            getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		LabelsPath:            getEnv("LABELS_PATH", ""),
		ConfidenceThreshold:   getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.5),
		MaxImageDimension:     getEnvAsInt("MAX_IMAGE_DIMENSION", 640),
		CameraSource:          getEnv("CAMERA_SOURCE", CameraWebcam),
		CameraBackDevice:      getEnvAsInt("CAMERA_BACK_DEVICE", 0),
		CameraFrontDevice:     getEnvAsInt("CAMERA_FRONT_DEVICE", 1),
		CameraStillPath:       getEnv("CAMERA_STILL_PATH", ""),
		CaptureQuality:        getEnvAsFloat("CAPTURE_QUALITY", 0.6), // 0..1
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
