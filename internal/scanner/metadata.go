package scanner

import "github.com/y0ug/hashscan/internal/models"

// VersionProvider extracts executable version resources for a file.
// Implementations live outside the scanning core; a nil result with a
// nil error means the file carries no version data.
type VersionProvider interface {
	VersionInfo(path string) (*models.VersionInfo, error)
}

// CertificateProvider extracts code-signing certificate metadata for a
// file. Same contract as VersionProvider: (nil, nil) means unsigned.
type CertificateProvider interface {
	CertificateInfo(path string) (*models.CertificateInfo, error)
}

// noopMetadata is the default provider on platforms without a version
// or signature source; every file reports no data.
type noopMetadata struct{}

func (noopMetadata) VersionInfo(string) (*models.VersionInfo, error) { return nil, nil }

func (noopMetadata) CertificateInfo(string) (*models.CertificateInfo, error) { return nil, nil }
