package processor

import (
	"encoding/json"
	"strings"

	renderjob "catalog/internal/contracts/renderjob/v1"
	"catalog/internal/models"
	"catalog/internal/pkg/errors"
)

// JobParser decodes queue payloads into render jobs.
type JobParser struct{}

func NewJobParser() *JobParser {
	return &JobParser{}
}

// Parse validates payload against the wire contract and decodes it.
func (jp *JobParser) Parse(payload []byte) (*models.RenderJob, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return nil, errors.Validation("empty job payload")
	}
	if err := renderjob.Validate(payload); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeValidation, "processor.parse", "payload violates render job contract")
	}

	var job models.RenderJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeValidation, "processor.parse", "invalid job payload")
	}
	if job.DownloadType.DownloadType != models.DownloadTypePDF {
		return nil, errors.ValidationField("download_type", "unsupported download type")
	}
	return &job, nil
}
