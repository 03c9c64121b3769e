package testdata

import (
	"fmt"
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/models"
	"github.com/APTrust/swordv3/util/fileutil"
	"github.com/icrowley/fake"
	"github.com/satori/go.uuid"
	"math/rand"
	"path/filepath"
	"time"
)

// LoadJSON returns the contents of testdata/json_objects/<name>.
func LoadJSON(name string) ([]byte, error) {
	return fileutil.LoadRelativeFile(filepath.Join("testdata", "json_objects", name))
}

// MustLoadJSON is LoadJSON for fixtures that must exist.
func MustLoadJSON(name string) []byte {
	data, err := LoadJSON(name)
	if err != nil {
		panic(fmt.Sprintf("Cannot load fixture %s: %v", name, err))
	}
	return data
}

func MakeUser() models.User {
	return models.User{
		Id:    int64(rand.Intn(50000) + 1),
		Name:  fake.FullName(),
		Email: fake.EmailAddress(),
	}
}

func MakeJournalContext(managerCount int) *models.JournalContext {
	managers := make([]models.User, managerCount)
	for i := 0; i < managerCount; i++ {
		managers[i] = MakeUser()
	}
	return &models.JournalContext{
		Id:           int64(rand.Intn(500) + 1),
		Path:         fake.Word(),
		Name:         fake.Title(),
		Publisher:    fake.Company(),
		SupportName:  fake.FullName(),
		SupportEmail: fake.EmailAddress(),
		Managers:     managers,
	}
}

// MakeService returns an enabled service for contextId, pointed at url.
// An empty url gets a random one.
func MakeService(contextId int64, url, authMode string) *models.Service {
	if url == "" {
		url = fmt.Sprintf("https://%s/sword/service-document", fake.DomainName())
	}
	service := &models.Service{
		ContextId: contextId,
		Name:      fake.Company() + " Repository",
		URL:       url,
		AuthMode:  authMode,
		Enabled:   true,
		UpdatedAt: time.Now().UTC(),
	}
	if authMode == constants.AuthBasic {
		service.Credential = models.Credential{
			Username: fake.UserName(),
			Password: fake.SimplePassword(),
		}
	} else {
		service.Credential = models.Credential{APIKey: uuid.NewV4().String()}
	}
	return service
}

func MakeGalley(mimeType string) models.Galley {
	id := int64(rand.Intn(50000) + 1)
	return models.Galley{
		Id:       id,
		Label:    "PDF",
		Locale:   "en",
		MimeType: mimeType,
		FileName: fmt.Sprintf("%s.pdf", fake.Word()),
		FilePath: fmt.Sprintf("journals/1/articles/%d/%s.pdf", id, uuid.NewV4().String()),
	}
}

// MakePublication returns a published publication with pdfCount
// PDF galleys and one HTML galley.
func MakePublication(pdfCount int) *models.Publication {
	galleys := make([]models.Galley, 0)
	for i := 0; i < pdfCount; i++ {
		galleys = append(galleys, MakeGalley(constants.MimeTypePDF))
	}
	galleys = append(galleys, MakeGalley("text/html"))
	id := int64(rand.Intn(50000) + 1)
	return &models.Publication{
		Id:           id,
		SubmissionId: int64(rand.Intn(50000) + 1),
		Status:       constants.PublicationStatusPublished,
		Title:        fake.Title(),
		Abstract:     fake.Paragraph(),
		Authors: []models.Author{
			{GivenName: fake.FirstName(), FamilyName: fake.LastName()},
			{GivenName: fake.FirstName(), FamilyName: fake.LastName()},
		},
		DatePublished:   RandomDateTime().Format("2006-01-02"),
		LastModified:    RandomDateTime().Format(constants.DepositDateFormat),
		DOI:             fmt.Sprintf("10.%d/%s", rand.Intn(9000)+1000, fake.Word()),
		Keywords:        []string{fake.Word(), fake.Word()},
		Subjects:        []string{fake.Word()},
		Type:            "Article",
		Locale:          "en",
		CopyrightHolder: fake.FullName(),
		CopyrightYear:   fmt.Sprintf("%d", fake.Year(2000, 2025)),
		LicenseURL:      "https://creativecommons.org/licenses/by/4.0/",
		URLPublished:    fmt.Sprintf("https://journals.example.com/index.php/j/article/view/%d", id),
		Galleys:         galleys,
	}
}

// MakeSubmission returns the submission that owns publication,
// in context contextId.
func MakeSubmission(publication *models.Publication, contextId int64) *models.Submission {
	return &models.Submission{
		Id:            publication.SubmissionId,
		ContextId:     contextId,
		DateSubmitted: RandomDateTime().Format(constants.DepositDateFormat),
	}
}

func MakeDepositRequest(publication *models.Publication, contextId int64, serviceURL string) *models.DepositRequest {
	return &models.DepositRequest{
		PublicationId: publication.Id,
		SubmissionId:  publication.SubmissionId,
		ContextId:     contextId,
		ServiceURL:    serviceURL,
	}
}

// RandomDateTime returns a time within the past year.
func RandomDateTime() time.Time {
	return time.Now().UTC().Add(-time.Duration(rand.Intn(365*24)) * time.Hour).Truncate(time.Second)
}

func RandomState() string {
	return constants.SwordStates[rand.Intn(len(constants.SwordStates))]
}
