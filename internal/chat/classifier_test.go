package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  Source
	}{
		{"What's the weather like today in Indianapolis?", SourceLive},
		{"Explain how property tax assessments work", SourceGeneral},
		{"Is it true that the Monon Trail is closed?", SourceLive},
		{"Who won the Colts game?", SourceLive},
		{"How is the traffic on I-465?", SourceLive},
		{"Is the library still open after 8pm?", SourceLive},
		{"Will it rain?", SourceLive},
		{"What's the AQI downtown", SourceLive},
		{"What are the events downtown", SourceLive},
		{"How do I register to vote?", SourceGeneral},
		{"Write a short poem about autumn leaves", SourceGeneral},
		{"How do I train for a 5k?", SourceGeneral},
		{"Help me brainstorm a community garden plan", SourceGeneral},
		{"", SourceGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.query))
		})
	}
}

func TestClassify_IsDeterministic(t *testing.T) {
	q := "Latest news on the Indy 500"
	first := Classify(q)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Classify(q))
	}
}

func TestSourceOther(t *testing.T) {
	assert.Equal(t, SourceGeneral, SourceLive.Other())
	assert.Equal(t, SourceLive, SourceGeneral.Other())
}
