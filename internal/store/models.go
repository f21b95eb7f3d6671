package store

import "time"

// Dificultad values used by the catalog UI. Stored as free text.
const (
	DificultadBajo      = "Bajo"
	DificultadMedio     = "Medio"
	DificultadMedioAlto = "Medio-Alto"
	DificultadAlto      = "Alto"
)

type Activity struct {
	ID            string    `json:"id"`
	Titulo        string    `json:"titulo"`
	Descripcion   string    `json:"descripcion"`
	Duracion      string    `json:"duracion"`
	Dificultad    string    `json:"dificultad"`
	Precio        string    `json:"precio"`
	Incluye       string    `json:"incluye"`
	Imagen        string    `json:"imagen"`
	Destacado     bool      `json:"destacado"`
	FechaCreacion time.Time `json:"fechaCreacion"`
	LugarID       string    `json:"lugarId"`
	// Imagenes is the legacy multi-image field. Only the first entry is ever stored.
	Imagenes []string `json:"imagenes,omitempty"`
}

type ActivityPatch struct {
	Titulo      *string `json:"titulo"`
	Descripcion *string `json:"descripcion"`
	Duracion    *string `json:"duracion"`
	Dificultad  *string `json:"dificultad"`
	Precio      *string `json:"precio"`
	Incluye     *string `json:"incluye"`
	Imagen      *string `json:"imagen"`
	Destacado   *bool   `json:"destacado"`
	LugarID     *string `json:"lugarId"`
}

func (p ActivityPatch) Apply(a *Activity) {
	setString(&a.Titulo, p.Titulo)
	setString(&a.Descripcion, p.Descripcion)
	setString(&a.Duracion, p.Duracion)
	setString(&a.Dificultad, p.Dificultad)
	setString(&a.Precio, p.Precio)
	setString(&a.Incluye, p.Incluye)
	setString(&a.Imagen, p.Imagen)
	setString(&a.LugarID, p.LugarID)
	if p.Destacado != nil {
		a.Destacado = *p.Destacado
	}
}

const (
	CategoriaTrekking    = "Trekking"
	CategoriaCamping     = "Camping"
	CategoriaMontanismo  = "Montañismo"
	CategoriaObservacion = "Observación"
	CategoriaTermas      = "Termas"
	CategoriaCascadas    = "Cascadas"
	CategoriaLagos       = "Lagos"
	CategoriaVolcanes    = "Volcanes"
	CategoriaParques     = "Parques"
	CategoriaOtro        = "Otro"
)

var Categorias = []string{
	CategoriaTrekking,
	CategoriaCamping,
	CategoriaMontanismo,
	CategoriaObservacion,
	CategoriaTermas,
	CategoriaCascadas,
	CategoriaLagos,
	CategoriaVolcanes,
	CategoriaParques,
	CategoriaOtro,
}

func IsCategoria(value string) bool {
	for _, c := range Categorias {
		if c == value {
			return true
		}
	}
	return false
}

type Place struct {
	ID            string    `json:"id"`
	Titulo        string    `json:"titulo"`
	Descripcion   string    `json:"descripcion"`
	Ubicacion     string    `json:"ubicacion"`
	Contenido     string    `json:"contenido"`
	Categoria     string    `json:"categoria"`
	Destacado     bool      `json:"destacado"`
	Imagenes      []string  `json:"imagenes"`
	FechaCreacion time.Time `json:"fechaCreacion"`
	Lat           *float64  `json:"lat"`
	Lng           *float64  `json:"lng"`
}

type PlacePatch struct {
	Titulo      *string   `json:"titulo"`
	Descripcion *string   `json:"descripcion"`
	Ubicacion   *string   `json:"ubicacion"`
	Contenido   *string   `json:"contenido"`
	Categoria   *string   `json:"categoria"`
	Destacado   *bool     `json:"destacado"`
	Imagenes    *[]string `json:"imagenes"`
	Lat         *float64  `json:"lat"`
	Lng         *float64  `json:"lng"`
	// ClearCoordinates drops both coordinates; a JSON null cannot be told apart from an absent field.
	ClearCoordinates bool `json:"clearCoordinates"`
}

func (p PlacePatch) Apply(pl *Place) {
	setString(&pl.Titulo, p.Titulo)
	setString(&pl.Descripcion, p.Descripcion)
	setString(&pl.Ubicacion, p.Ubicacion)
	setString(&pl.Contenido, p.Contenido)
	setString(&pl.Categoria, p.Categoria)
	if p.Destacado != nil {
		pl.Destacado = *p.Destacado
	}
	if p.Imagenes != nil {
		pl.Imagenes = append([]string{}, (*p.Imagenes)...)
	}
	if p.ClearCoordinates {
		pl.Lat, pl.Lng = nil, nil
	}
	if p.Lat != nil {
		v := *p.Lat
		pl.Lat = &v
	}
	if p.Lng != nil {
		v := *p.Lng
		pl.Lng = &v
	}
}

const (
	EstadoPendiente  = "pendiente"
	EstadoConfirmada = "confirmada"
	EstadoCancelada  = "cancelada"
)

type Reservation struct {
	ID               string    `json:"id"`
	ActividadID      string    `json:"actividadId"`
	ActividadTitulo  string    `json:"actividadTitulo"`
	Nombre           string    `json:"nombre"`
	Email            string    `json:"email"`
	Telefono         string    `json:"telefono"`
	CantidadPersonas int       `json:"cantidadPersonas"`
	Mensaje          string    `json:"mensaje"`
	FechaReserva     time.Time `json:"fechaReserva"`
	// Estado has no column; it is derived in memory and empty reads as pendiente.
	Estado string `json:"estado,omitempty"`
}

func (r Reservation) EffectiveEstado() string {
	if r.Estado == "" {
		return EstadoPendiente
	}
	return r.Estado
}

type ReservationPatch struct {
	Nombre           *string `json:"nombre"`
	Email            *string `json:"email"`
	Telefono         *string `json:"telefono"`
	CantidadPersonas *int    `json:"cantidadPersonas"`
	Mensaje          *string `json:"mensaje"`
}

func (p ReservationPatch) Apply(r *Reservation) {
	setString(&r.Nombre, p.Nombre)
	setString(&r.Email, p.Email)
	setString(&r.Telefono, p.Telefono)
	setString(&r.Mensaje, p.Mensaje)
	if p.CantidadPersonas != nil {
		r.CantidadPersonas = *p.CantidadPersonas
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
