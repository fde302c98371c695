// Package main hosts the vts3a service entrypoint.
//
// vts3a turns a media URL into an MP3 published to object storage. A job is a
// flat JSON object {"url", "folder", "uuid"}; the audio lands at
// {folder}/{uuid}.mp3.
//
// Modes:
//   - queue (default): consumes the durable vts3a_convert_queue on RabbitMQ, or a Pub/Sub
//     subscription, one message at a time. Every delivery is acknowledged once handled,
//     including rejected payloads and failed conversions.
//   - http: serves POST /upload and hands accepted jobs to a bounded worker pool. A full
//     pool answers 503 instead of queueing indefinitely.
//
// Pipeline: URLs on a streaming platform (host or path containing "youtu") go through
// yt-dlp audio extraction; everything else is fetched with Colly, probed with ffprobe and
// transcoded with ffmpeg to 48 kHz stereo 320k MP3. The artifact is then uploaded to
// S3 (minio-go), GCS, a local directory or memory, and every local file is removed.
//
// Configuration: Viper reads an optional --config file plus VTS3A_* environment
// variables. The historical names (AWS_S3_BUCKET_NAME, RABBITMQ_HOST, ...) are still
// honored, and .env.{production|development}.local is loaded first without overriding
// variables already set.
//
// Run locally: go run ./cmd/vts3a serve --config config.yaml
package main
