package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"pdf-rag/internal/models"
)

func TestStore_Empty(t *testing.T) {
	s := NewStore()
	_, ok := s.Document()
	assert.False(t, ok)
	assert.Equal(t, "", s.Text())
}

func TestStore_Overwrite(t *testing.T) {
	s := NewStore()
	s.Set(models.Document{Filename: "a.pdf", Text: "first"})
	s.Set(models.Document{Filename: "b.pdf", Text: "second"})

	doc, ok := s.Document()
	assert.True(t, ok)
	assert.Equal(t, "b.pdf", doc.Filename)
	assert.Equal(t, "second", s.Text())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Set(models.Document{Filename: "x.pdf", Text: "text"})
		}()
		go func() {
			defer wg.Done()
			_ = s.Text()
		}()
	}
	wg.Wait()
	assert.Equal(t, "text", s.Text())
}
