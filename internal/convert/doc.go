// Package convert defines the job record, validation rules, error taxonomy and
// capability interfaces shared by the acquisition, upload and ingress
// subsystems of the vts3a worker.
package convert
