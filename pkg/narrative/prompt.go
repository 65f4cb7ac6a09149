package narrative

import (
	"strings"
	"text/template"
)

var promptTemplate = template.Must(template.New("prompt").Parse(`Kamu adalah seorang guru PAUD profesional yang sedang menulis raport siswa.
Buatlah narasi deskripsi perkembangan anak untuk raport PAUD dengan detail berikut:

Nama Anak: {{.StudentName}}
Aspek Penilaian: {{.AspectName}} ({{.AspectCategory}})
Nilai: {{.Score}} ({{.ScoreLabel}})
{{if .Keywords}}Kata kunci: {{.Keywords}}{{else}}Tidak ada kata kunci khusus.{{end}}

Tulis narasi deskriptif dalam 2-3 kalimat yang:
1. Menggunakan bahasa Indonesia formal dan profesional
2. Menggambarkan perkembangan anak secara spesifik sesuai nilai yang diberikan
3. Jika ada kata kunci, integrasikan kata kunci tersebut ke dalam narasi secara natural
4. Bersifat positif dan konstruktif
5. Fokus pada perkembangan anak, bukan perbandingan dengan anak lain
6. Gunakan nama anak ({{.StudentName}}) di awal kalimat

Contoh format narasi:
- Untuk BSB: "{{.StudentName}} menunjukkan perkembangan yang sangat baik dalam aspek {{.AspectCategory}}. [Deskripsi spesifik berdasarkan kata kunci]. [Pencapaian tambahan atau keunggulan]."
- Untuk BSH: "{{.StudentName}} berkembang sesuai harapan dalam aspek {{.AspectCategory}}. [Deskripsi kemampuan yang sudah dikuasai]."
- Untuk MB: "{{.StudentName}} mulai menunjukkan perkembangan dalam aspek {{.AspectCategory}}. [Deskripsi kemampuan yang mulai muncul]. Perlu didampingi untuk lebih optimal."
- Untuk BB: "{{.StudentName}} masih memerlukan bimbingan dalam aspek {{.AspectCategory}}. [Deskripsi area yang perlu perhatian]. Disarankan untuk terus didampingi dan diberi stimulasi."

Tulis HANYA narasi deskripsi tanpa label atau penjelasan tambahan:`))

// BuildPrompt renders the teacher-voice instruction for req.
func BuildPrompt(req Request) string {
	if req.ScoreLabel == "" {
		req.ScoreLabel = "-"
	}
	req.Keywords = strings.TrimSpace(req.Keywords)
	var b strings.Builder
	// Execute only fails on writer errors, which strings.Builder never returns.
	_ = promptTemplate.Execute(&b, req)
	return b.String()
}
