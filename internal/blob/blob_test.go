package blob

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	t.Parallel()

	a := ObjectName("Report.DOCX")
	b := ObjectName("Report.DOCX")

	assert.True(t, strings.HasSuffix(a, ".docx"))
	assert.Len(t, a, 36+len(".docx"))
	assert.NotEqual(t, a, b)
	assert.Len(t, ObjectName("noext"), 36)
}

func TestValidateName(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateName("abc.docx"))
	assert.ErrorIs(t, ValidateName(""), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("../etc/passwd"), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("/abs"), ErrInvalidName)
}
