package unzipper

import (
	"reflect"
	"testing"
)

func TestArchiveBaseName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.zip", "a"},
		{"/x/y/photos.7z", "photos"},
		{"comic.cbr", "comic"},
		{"src.tar", "src"},
		{"src.tar.gz", "src"},
		{"src.TGZ", "src"},
		{"Backup.Tar.Bz2", "Backup"},
		{"logs.tar.xz", "logs"},
		{"v1.2.3.tar.gz", "v1.2.3"},
		{"my.archive.zip", "my.archive"},
		{"noext", "noext"},
		{"...zip", "_"},
		{"..tar.gz", "_"},
		{"/x/..", "_"},
		{"a:b.zip", "a_b"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ArchiveBaseName(tt.path); got != tt.want {
				t.Errorf("ArchiveBaseName(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestBuildJobs(t *testing.T) {
	paths := []string{"a.zip", "b.7z", "c.tar"}

	tests := []struct {
		name      string
		passwords []string
		want      []string
	}{
		{"no passwords", nil, []string{"", "", ""}},
		{"short array", []string{"one"}, []string{"one", "", ""}},
		{"exact", []string{"one", "two", "three"}, []string{"one", "two", "three"}},
		{"extra ignored", []string{"one", "two", "three", "four"}, []string{"one", "two", "three"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := BuildJobs(paths, tt.passwords, true)
			if len(jobs) != len(paths) {
				t.Fatalf("got %d jobs, want %d", len(jobs), len(paths))
			}
			got := make([]string, len(jobs))
			for i, job := range jobs {
				got[i] = job.Password
				if job.SourcePath != paths[i] {
					t.Errorf("job %d path = %q, want %q", i, job.SourcePath, paths[i])
				}
				if !job.VerifyAfterExtract {
					t.Errorf("job %d VerifyAfterExtract = false", i)
				}
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("passwords = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPasswordForFormat(t *testing.T) {
	pm := newPasswordManager()
	for _, format := range []ArchiveFormat{FormatTAR, FormatTARGZ, FormatTARBZ2, FormatTARXZ} {
		if got := pm.passwordFor(format, "secret"); got != "" {
			t.Errorf("passwordFor(%s) = %q, want empty", format, got)
		}
	}
	for _, format := range []ArchiveFormat{FormatZIP, Format7Z, FormatRAR} {
		if got := pm.passwordFor(format, "secret"); got != "secret" {
			t.Errorf("passwordFor(%s) = %q, want secret", format, got)
		}
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported("x.tar.bz2") {
		t.Error("x.tar.bz2 should be supported")
	}
	if IsSupported("x.bz2") {
		t.Error("x.bz2 should not be supported")
	}
	if got := len(GetSupportedFormats()); got != 7 {
		t.Errorf("GetSupportedFormats() returned %d formats, want 7", got)
	}
}
