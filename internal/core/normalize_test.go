package core

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		source     string
		author     string
		wantSource string
		wantAuthor string
	}{
		{"known host", "https://g1.globo.com/sp/noticia.ghtml", "globo.com", "", "G1", ""},
		{"longest suffix wins", "https://valor.globo.com/empresas/x", "", "", "Valor Econômico", ""},
		{"www stripped", "https://www.estadao.com.br/economia/x", "estadao", "", "Estadão", ""},
		{"author from path", "https://www.estadao.com.br/autor/maria-silva/x", "", "", "Estadão", "Maria Silva"},
		{"byline prefix", "https://folha.uol.com.br/x", "Folha", "Por João Souza", "Folha de S.Paulo", "João Souza"},
		{"unknown keeps name", "https://jornal.example.com.br/x", "Jornal Exemplo", "", "Jornal Exemplo", ""},
		{"unknown derives name", "https://noticias.portalacme.com.br/x", "", "", "Portalacme", ""},
		{"host as name replaced", "https://diario-do-sul.com/x", "diario-do-sul.com", "", "Diario Do Sul", ""},
		{"blogspot", "https://acme-news.blogspot.com/2024/05/x.html", "", "Ana", "Acme News", "Ana"},
		{"youtube channel", "https://www.youtube.com/watch?v=1", "YouTube - Canal Acme", "", "YouTube - Canal Acme", "Canal Acme"},
		{"youtube author", "https://youtu.be/1", "", "Canal Acme", "YouTube - Canal Acme", "Canal Acme"},
		{"bad url", "::", "Fonte", "Autor", "Fonte", "Autor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, author := Normalize(tt.url, tt.source, tt.author)
			if src != tt.wantSource || author != tt.wantAuthor {
				t.Fatalf("Normalize = (%q, %q), want (%q, %q)", src, author, tt.wantSource, tt.wantAuthor)
			}
			src2, author2 := Normalize(tt.url, src, author)
			if src2 != src || author2 != author {
				t.Errorf("not idempotent: (%q, %q) -> (%q, %q)", src, author, src2, author2)
			}
		})
	}
}
