package store

import "time"

const (
	SheetActividades = "Actividades"
	SheetLugares     = "Lugares"
	SheetReservas    = "Reservas"
)

// ActivitySchema lays out Actividades!A:K.
var ActivitySchema = Schema[Activity]{
	Sheet:  SheetActividades,
	Prefix: "act",
	Columns: []Column[Activity]{
		stringColumn("id", func(a *Activity) *string { return &a.ID }),
		stringColumn("titulo", func(a *Activity) *string { return &a.Titulo }),
		stringColumn("descripcion", func(a *Activity) *string { return &a.Descripcion }),
		stringColumn("duracion", func(a *Activity) *string { return &a.Duracion }),
		stringColumn("dificultad", func(a *Activity) *string { return &a.Dificultad }),
		stringColumn("precio", func(a *Activity) *string { return &a.Precio }),
		stringColumn("incluye", func(a *Activity) *string { return &a.Incluye }),
		{
			Name: "imagen",
			Encode: func(a *Activity) (string, error) {
				if a.Imagen == "" && len(a.Imagenes) > 0 {
					return a.Imagenes[0], nil
				}
				return a.Imagen, nil
			},
			Decode: func(a *Activity, cell string) error {
				a.Imagen = cell
				return nil
			},
		},
		boolColumn("destacado", func(a *Activity) *bool { return &a.Destacado }),
		timeColumn("fechaCreacion", func(a *Activity) *time.Time { return &a.FechaCreacion }),
		stringColumn("lugarId", func(a *Activity) *string { return &a.LugarID }),
	},
	ID:         func(a *Activity) string { return a.ID },
	SetID:      func(a *Activity, id string) { a.ID = id },
	Created:    func(a *Activity) time.Time { return a.FechaCreacion },
	SetCreated: func(a *Activity, t time.Time) { a.FechaCreacion = t },
	Validate:   ValidateActivity,
}

// PlaceSchema lays out Lugares!A:K.
var PlaceSchema = Schema[Place]{
	Sheet:  SheetLugares,
	Prefix: "lugar",
	Columns: []Column[Place]{
		stringColumn("id", func(p *Place) *string { return &p.ID }),
		stringColumn("titulo", func(p *Place) *string { return &p.Titulo }),
		stringColumn("descripcion", func(p *Place) *string { return &p.Descripcion }),
		stringColumn("ubicacion", func(p *Place) *string { return &p.Ubicacion }),
		stringColumn("contenido", func(p *Place) *string { return &p.Contenido }),
		stringColumn("categoria", func(p *Place) *string { return &p.Categoria }),
		boolColumn("destacado", func(p *Place) *bool { return &p.Destacado }),
		listColumn("imagenes", func(p *Place) *[]string { return &p.Imagenes }),
		timeColumn("fechaCreacion", func(p *Place) *time.Time { return &p.FechaCreacion }),
		floatColumn("lat", func(p *Place) **float64 { return &p.Lat }),
		floatColumn("lng", func(p *Place) **float64 { return &p.Lng }),
	},
	ID:         func(p *Place) string { return p.ID },
	SetID:      func(p *Place, id string) { p.ID = id },
	Created:    func(p *Place) time.Time { return p.FechaCreacion },
	SetCreated: func(p *Place, t time.Time) { p.FechaCreacion = t },
	Normalize:  NormalizePlace,
	Validate:   ValidatePlace,
}

// ReservationSchema lays out Reservas!A:I.
var ReservationSchema = Schema[Reservation]{
	Sheet:  SheetReservas,
	Prefix: "reserva",
	Columns: []Column[Reservation]{
		stringColumn("id", func(r *Reservation) *string { return &r.ID }),
		stringColumn("actividadId", func(r *Reservation) *string { return &r.ActividadID }),
		stringColumn("actividadTitulo", func(r *Reservation) *string { return &r.ActividadTitulo }),
		stringColumn("nombre", func(r *Reservation) *string { return &r.Nombre }),
		stringColumn("email", func(r *Reservation) *string { return &r.Email }),
		stringColumn("telefono", func(r *Reservation) *string { return &r.Telefono }),
		countColumn("cantidadPersonas", 1, func(r *Reservation) *int { return &r.CantidadPersonas }),
		stringColumn("mensaje", func(r *Reservation) *string { return &r.Mensaje }),
		timeColumn("fechaReserva", func(r *Reservation) *time.Time { return &r.FechaReserva }),
	},
	ID:         func(r *Reservation) string { return r.ID },
	SetID:      func(r *Reservation, id string) { r.ID = id },
	Created:    func(r *Reservation) time.Time { return r.FechaReserva },
	SetCreated: func(r *Reservation, t time.Time) { r.FechaReserva = t },
	Normalize:  NormalizeReservation,
	Validate:   ValidateReservation,
}
