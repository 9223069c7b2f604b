// Package models defines the payloads exchanged with the analysis backend.
package models
