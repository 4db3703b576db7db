package handlers

import (
	"encoding/xml"
	"log"
	"net/http"
	"time"

	"github.com/antigravity/s3keeper/internal/models"
)

const (
	s3Xmlns = "http://s3.amazonaws.com/doc/2006-03-01/"
	// Формат LastModified в листингах: ISO-8601, UTC, миллисекунды
	// всегда нулевые (секундная точность, как в эталонных ответах).
	s3TimeFormat = "2006-01-02T15:04:05.000Z"

	storageClassStandard = "STANDARD"
	listMaxKeys          = 1000
)

// Фиксированный блок владельца в листингах.
type xmlOwner struct {
	ID          string `xml:"ID"`
	DisplayName string `xml:"DisplayName"`
}

var defaultOwner = xmlOwner{
	ID:          "00000000000000000000000000000000",
	DisplayName: "antigravity",
}

// formatS3Time приводит время к формату листинга.
func formatS3Time(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(s3TimeFormat)
}

// contentsEntry — элемент Contents в ListBucketResult.
type contentsEntry struct {
	Key          string   `xml:"Key"`
	LastModified string   `xml:"LastModified"`
	ETag         string   `xml:"ETag"`
	Size         int64    `xml:"Size"`
	Owner        xmlOwner `xml:"Owner"`
	StorageClass string   `xml:"StorageClass"`
}

// listBucketResult — документ листинга текущих объектов бакета.
type listBucketResult struct {
	XMLName     xml.Name        `xml:"ListBucketResult"`
	Xmlns       string          `xml:"xmlns,attr"`
	Name        string          `xml:"Name"`
	Prefix      string          `xml:"Prefix"`
	Marker      string          `xml:"Marker"`
	MaxKeys     int             `xml:"MaxKeys"`
	IsTruncated bool            `xml:"IsTruncated"`
	Contents    []contentsEntry `xml:"Contents"`
}

// versionEntry — элемент Version или DeleteMarker в ListVersionsResult.
// Имя элемента задается через XMLName, чтобы сохранить порядок документа
// (версии и маркеры чередуются в порядке обхода истории).
type versionEntry struct {
	XMLName      xml.Name
	Key          string   `xml:"Key"`
	VersionID    string   `xml:"VersionId"`
	IsLatest     bool     `xml:"IsLatest"`
	LastModified string   `xml:"LastModified"`
	ETag         string   `xml:"ETag,omitempty"`
	Size         *int64   `xml:"Size,omitempty"`
	Owner        xmlOwner `xml:"Owner"`
	StorageClass string   `xml:"StorageClass,omitempty"`
}

// listVersionsResult — документ полной истории бакета.
type listVersionsResult struct {
	XMLName         xml.Name `xml:"ListVersionsResult"`
	Xmlns           string   `xml:"xmlns,attr"`
	Name            string   `xml:"Name"`
	Prefix          string   `xml:"Prefix"`
	KeyMarker       string   `xml:"KeyMarker"`
	VersionIDMarker string   `xml:"VersionIdMarker"`
	IsTruncated     bool     `xml:"IsTruncated"`
	Entries         []versionEntry
}

// newListBucketResult собирает документ листинга текущих объектов.
func newListBucketResult(bucket string, versions []models.ObjectVersion) listBucketResult {
	result := listBucketResult{
		Xmlns:    s3Xmlns,
		Name:     bucket,
		MaxKeys:  listMaxKeys,
		Contents: make([]contentsEntry, 0, len(versions)),
	}
	for _, v := range versions {
		result.Contents = append(result.Contents, contentsEntry{
			Key:          v.Key,
			LastModified: formatS3Time(v.LastModified),
			ETag:         v.ETag,
			Size:         v.Size,
			Owner:        defaultOwner,
			StorageClass: storageClassStandard,
		})
	}
	return result
}

// newListVersionsResult собирает документ полной истории бакета.
func newListVersionsResult(bucket string, versions []models.ObjectVersion) listVersionsResult {
	result := listVersionsResult{
		Xmlns:   s3Xmlns,
		Name:    bucket,
		Entries: make([]versionEntry, 0, len(versions)),
	}
	for _, v := range versions {
		entry := versionEntry{
			Key:          v.Key,
			VersionID:    v.VersionID,
			IsLatest:     v.IsLatest,
			LastModified: formatS3Time(v.LastModified),
			Owner:        defaultOwner,
		}
		if v.IsDeleteMarker {
			entry.XMLName = xml.Name{Local: "DeleteMarker"}
		} else {
			entry.XMLName = xml.Name{Local: "Version"}
			entry.ETag = v.ETag
			size := v.Size
			entry.Size = &size
			entry.StorageClass = storageClassStandard
		}
		result.Entries = append(result.Entries, entry)
	}
	return result
}

// errorResponse — S3-совместимый документ ошибки.
type errorResponse struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

// writeXML отправляет XML-документ с указанным статусом.
func writeXML(w http.ResponseWriter, status int, doc any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		log.Printf("[S3Handler] Ошибка записи XML-заголовка: %v", err)
		return
	}
	if err := xml.NewEncoder(w).Encode(doc); err != nil {
		log.Printf("[S3Handler] Ошибка кодирования XML-ответа: %v", err)
	}
}

// writeS3Error отправляет документ ошибки с машиночитаемым кодом.
func writeS3Error(w http.ResponseWriter, status int, code, message string) {
	writeXML(w, status, errorResponse{Code: code, Message: message})
}
