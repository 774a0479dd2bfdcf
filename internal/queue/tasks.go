package queue

import (
	"time"

	"github.com/nikhilbhutani/visionaid/internal/conversion"
)

const (
	TypeConversionRun = "conversion:run"

	QueueDefault = "default"
)

// ConversionRunPayload carries everything the worker needs; the image travels
// inside the task as base64 JSON.
type ConversionRunPayload struct {
	JobID       string `json:"job_id"`
	Image       []byte `json:"image"`
	Filename    string `json:"filename,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
	Voice       string `json:"voice,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	WaitSeconds int    `json:"wait_seconds,omitempty"`
	MaxRetries  int    `json:"max_retries,omitempty"`
}

func NewConversionRunPayload(jobID string, req conversion.Request) ConversionRunPayload {
	return ConversionRunPayload{
		JobID:       jobID,
		Image:       req.Image,
		Filename:    req.Filename,
		MimeType:    req.MimeType,
		Voice:       req.Voice,
		Prompt:      req.Prompt,
		WaitSeconds: int(req.Tuning.WaitTime / time.Second),
		MaxRetries:  req.Tuning.MaxRetries,
	}
}

func (p ConversionRunPayload) Request() conversion.Request {
	return conversion.Request{
		Image:    p.Image,
		Filename: p.Filename,
		MimeType: p.MimeType,
		Voice:    p.Voice,
		Prompt:   p.Prompt,
		Tuning: conversion.Tuning{
			WaitTime:   time.Duration(p.WaitSeconds) * time.Second,
			MaxRetries: p.MaxRetries,
		},
	}
}
