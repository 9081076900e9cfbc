package mongodriver

import (
	"errors"
	"regexp"

	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// duplicateKey extracts the index name and the key from E11000 messages.
var duplicateKey = regexp.MustCompile(`index: (\S+) dup key: (\{.*\})`)

// translateErr maps driver errors onto the errors of [domain]. The driver
// error stays reachable through [errors.As].
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrNoDocuments
	}

	var bulk mongo.BulkWriteException
	if errors.As(err, &bulk) && len(bulk.WriteErrors) > 0 {
		res := &domain.ErrBulkWrite{Errors: make(map[int]error, len(bulk.WriteErrors))}
		for _, we := range bulk.WriteErrors {
			res.Errors[we.Index] = writeError(we.WriteError)
		}
		return errors.Join(res, err)
	}

	var write mongo.WriteException
	if errors.As(err, &write) && len(write.WriteErrors) == 1 {
		return errors.Join(writeError(write.WriteErrors[0]), err)
	}
	return err
}

func writeError(we mongo.WriteError) error {
	if !we.HasErrorCode(11000) && !we.HasErrorCode(11001) {
		return we
	}
	cv := &domain.ErrConstraintViolated{}
	if m := duplicateKey.FindStringSubmatch(we.Message); m != nil {
		cv.Index, cv.Key = m[1], m[2]
	}
	return cv
}
