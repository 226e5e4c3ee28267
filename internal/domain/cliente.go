package domain

// ============================================================
// Clientes: customer/lead rows exposed by farol_view
// ============================================================

const (
	DefaultClientePageSize = 50
	MaxClientePageSize     = 200
)

// ClienteRow is one denormalized row of farol_view.
type ClienteRow struct {
	ID                      string   `json:"id" csv:"id"`
	Nome                    *string  `json:"nome" csv:"nome"`
	Telefone                *string  `json:"telefone" csv:"telefone"`
	CPF                     *string  `json:"cpf" csv:"cpf"`
	Status                  *string  `json:"status" csv:"status"`
	Saldo                   *float64 `json:"saldo" csv:"saldo"`
	Pago                    *string  `json:"pago" csv:"pago"`
	HorarioDaUltimaResposta *string  `json:"horario_da_ultima_resposta" csv:"horario_da_ultima_resposta"`
	Instancia               *string  `json:"instancia" csv:"instancia"`
	BancoSimulado           *string  `json:"banco_simulado" csv:"banco_simulado"`
	UF                      *string  `json:"uf" csv:"uf"`
	Cidade                  *string  `json:"cidade" csv:"cidade"`
}

// ClienteFilter holds the listing filters. Text fields are matched
// case-insensitively by the backend; Status and UF are exact.
type ClienteFilter struct {
	Q         string `json:"q,omitempty"`
	Status    string `json:"status,omitempty"`
	UF        string `json:"uf,omitempty"`
	Cidade    string `json:"cidade,omitempty"`
	Instancia string `json:"instancia,omitempty"`
	Banco     string `json:"banco,omitempty"`
	DataDe    string `json:"data_de,omitempty"`
	DataAte   string `json:"data_ate,omitempty"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
}

// Offset returns the zero-based index of the first row of the page.
func (f ClienteFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// ClientePage is one page of the listing plus the exact filtered count.
type ClientePage struct {
	Rows       []ClienteRow `json:"rows"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"page_size"`
	TotalPages int          `json:"total_pages"`
}

// TotalPagesFor returns the page count, never less than 1.
func TotalPagesFor(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
