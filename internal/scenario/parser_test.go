package scenario

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDescriptor(t *testing.T, name, content string) *Package {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	kind := DescriptorXML
	if filepath.Ext(name) == ".yaml" || filepath.Ext(name) == ".yml" {
		kind = DescriptorYAML
	}
	return &Package{
		Path:           dir,
		DescriptorPath: path,
		Kind:           kind,
	}
}

func TestParseDescriptorXML(t *testing.T) {
	pkg := writeDescriptor(t, "summary.xml", `<?xml version="1.0" encoding="utf-8"?>
<Summary>
  <Property>
    <Name>Dawn Patrol</Name>
    <Author>K. Haru</Author>
    <Description>A border skirmish at first light.</Description>
    <Level min="2" max="5"/>
    <Tags><Tag>Combat</Tag><Tag>short</Tag></Tags>
    <Revision>3</Revision>
    <RequiredCoupons number="1">Veteran</RequiredCoupons>
  </Property>
</Summary>`)

	meta, err := ParseDescriptor(context.Background(), pkg)
	require.NoError(t, err)

	assert.Equal(t, "Dawn Patrol", meta.Title)
	assert.Equal(t, "K. Haru", meta.Author)
	assert.Equal(t, "A border skirmish at first light.", meta.Synopsis)
	assert.Equal(t, 2, meta.LevelMin)
	assert.Equal(t, 5, meta.LevelMax)
	assert.Equal(t, []string{"combat", "short"}, meta.Tags)
	assert.Equal(t, "3", meta.Revision)
	assert.Equal(t, 1, meta.Coupons.Number)
	assert.Equal(t, []string{"Veteran"}, meta.Coupons.Names)
}

func TestParseDescriptorYAML(t *testing.T) {
	pkg := writeDescriptor(t, "scenario.yaml", `
title: Dawnless Keep
author: solbin
synopsis: A puzzle crawl through a lightless fortress.
level:
  min: 1
  max: 3
tags: [Puzzle, dungeon]
revision: "1.2"
required_coupons:
  number: 0
`)

	meta, err := ParseDescriptor(context.Background(), pkg)
	require.NoError(t, err)

	assert.Equal(t, "Dawnless Keep", meta.Title)
	assert.Equal(t, "solbin", meta.Author)
	assert.Equal(t, 1, meta.LevelMin)
	assert.Equal(t, 3, meta.LevelMax)
	assert.Equal(t, []string{"puzzle", "dungeon"}, meta.Tags)
	assert.Equal(t, "1.2", meta.Revision)
}

func TestParseDescriptorDefaults(t *testing.T) {
	pkg := writeDescriptor(t, "summary.xml",
		`<Summary><Property><Description>no title here</Description></Property></Summary>`)

	meta, err := ParseDescriptor(context.Background(), pkg)
	require.NoError(t, err)

	assert.Equal(t, DefaultTitle, meta.Title)
	assert.Equal(t, DefaultAuthor, meta.Author)
	assert.Zero(t, meta.LevelMin)
	assert.Zero(t, meta.LevelMax)
	assert.Empty(t, meta.Tags)
}

func TestParseDescriptorMalformedXML(t *testing.T) {
	pkg := writeDescriptor(t, "summary.xml", `<Summary><Property><Name>Broken`)

	meta, err := ParseDescriptor(context.Background(), pkg)
	assert.Nil(t, meta)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, pkg.DescriptorPath, pe.Path)
}

func TestParseDescriptorBadLevelAttrNamesField(t *testing.T) {
	pkg := writeDescriptor(t, "summary.xml",
		`<Summary><Property><Name>X</Name><Level min="abc" max="5"/></Property></Summary>`)

	_, err := ParseDescriptor(context.Background(), pkg)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Level.min", pe.Field)
}

func TestParseDescriptorMalformedYAML(t *testing.T) {
	pkg := writeDescriptor(t, "scenario.yaml", "title: [unclosed")

	_, err := ParseDescriptor(context.Background(), pkg)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestParseDescriptorMissingFile(t *testing.T) {
	pkg := &Package{
		Path:           t.TempDir(),
		DescriptorPath: filepath.Join(t.TempDir(), "summary.xml"),
		Kind:           DescriptorXML,
	}

	_, err := ParseDescriptor(context.Background(), pkg)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
}

func TestParseDescriptorCancelledContext(t *testing.T) {
	pkg := writeDescriptor(t, "summary.xml", `<Summary><Property><Name>X</Name></Property></Summary>`)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := ParseDescriptor(ctx, pkg)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "korean", text: "새벽 순찰대", want: LangKorean},
		{name: "japanese hiragana", text: "あかつきのパトロール", want: LangJapanese},
		{name: "japanese katakana", text: "パトロール", want: LangJapanese},
		{name: "latin only", text: "Dawn Patrol", want: LangUnknown},
		{name: "empty", text: "", want: LangUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.text))
		})
	}
}
