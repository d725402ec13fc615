package models

import (
	"github.com/smazurov/pdfnode/internal/wkhtmltopdf"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`

	ConverterVersion string `json:"converter_version,omitempty" example:"wkhtmltopdf 0.12.6 (with patched qt)" doc:"Version reported by the converter binary"`
}

type VersionResponse struct {
	Body VersionData
}

// Pool models
type ConversionTotals struct {
	Succeeded  uint64 `json:"succeeded" example:"1200" doc:"Conversions that produced a complete PDF"`
	Failed     uint64 `json:"failed" example:"3" doc:"Conversions that ended with an error"`
	BytesTotal uint64 `json:"bytes_total" example:"52428800" doc:"Bytes of PDF produced"`
}

type PoolData struct {
	Idle              int              `json:"idle" example:"4" doc:"Pre-warmed workers"`
	Running           int              `json:"running" example:"1" doc:"Workers serving a conversion"`
	MaxIdle           int              `json:"max_idle" example:"4" doc:"Idle target"`
	MonitorIntervalMs int64            `json:"monitor_interval_ms" example:"5000" doc:"Monitor period in milliseconds"`
	Closed            bool             `json:"closed" example:"false" doc:"Whether the pool has been shut down"`
	Conversions       ConversionTotals `json:"conversions" doc:"Totals since start"`
}

type PoolResponse struct {
	Body PoolData
}

// Options models for converter flags
type DefaultOption struct {
	Key   string `json:"key" example:"pageSize" doc:"Option key"`
	Flag  string `json:"flag" example:"--page-size" doc:"Converter flag"`
	Value any    `json:"value" doc:"Value applied to every conversion"`
}

type OptionsData struct {
	Options  []wkhtmltopdf.OptionInfo `json:"options" doc:"Flags accepted as /api/generate query parameters"`
	Defaults []DefaultOption          `json:"defaults" doc:"Flags applied to every conversion, in order"`
}

type OptionsResponse struct {
	Body OptionsData
}
